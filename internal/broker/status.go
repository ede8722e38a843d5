package broker

// DeliveryStatus is the local outcome of a publish call. Accepted means the
// client queued the message for delivery; it says nothing about the broker.
type DeliveryStatus int

const (
	StatusRejected DeliveryStatus = iota
	StatusAccepted
)

func (s DeliveryStatus) String() string {
	if s == StatusAccepted {
		return "accepted"
	}
	return "rejected"
}

// MarshalText implements encoding.TextMarshaler.
func (s DeliveryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
