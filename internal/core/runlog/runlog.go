// Package runlog defines the persisted summary of a publishing run.
package runlog

import (
	"time"

	"github.com/hay-kot/boatpub/internal/broker"
	"github.com/hay-kot/boatpub/internal/publisher"
)

// Entry records one invocation of the run command.
type Entry struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	Broker         string          `json:"broker"`
	Topic          string          `json:"topic"`
	TLS            bool            `json:"tls"`
	QoS            int             `json:"qos"`
	Requested      int             `json:"requested"`
	Attempted      int             `json:"attempted"`
	Accepted       int             `json:"accepted"`
	Rejected       int             `json:"rejected"`
	Acknowledged   int             `json:"acknowledged,omitempty"`
	Unacknowledged int             `json:"unacknowledged,omitempty"`
	State          publisher.State `json:"state"`
	Interrupted    bool            `json:"interrupted,omitempty"`
	ErrorKind      broker.Kind     `json:"error_kind,omitempty"`
	Error          string          `json:"error,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}

// Failed reports whether the run never got a connection or had rejected
// publishes.
func (e *Entry) Failed() bool {
	return e.Error != "" || e.Rejected > 0
}

// Duration returns how long the run took.
func (e *Entry) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// FromReport builds an Entry from a loop report. runErr is the error Run
// returned, if any.
func FromReport(id string, opts broker.Options, topic string, r publisher.Report, runErr error) Entry {
	e := Entry{
		ID:             id,
		ClientID:       opts.ClientID,
		Broker:         opts.Address(),
		Topic:          topic,
		TLS:            opts.TLS != nil,
		QoS:            int(opts.QoS),
		Requested:      r.Requested,
		Attempted:      r.Attempted,
		Accepted:       r.Accepted,
		Rejected:       r.Rejected,
		Acknowledged:   r.Acks.Acknowledged,
		Unacknowledged: r.Acks.Unacknowledged,
		State:          r.State,
		Interrupted:    r.Interrupted,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
	if runErr != nil {
		e.Error = runErr.Error()
		e.ErrorKind = broker.KindOf(runErr)
	}
	return e
}
