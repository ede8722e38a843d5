package broker

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

var (
	// ErrConnection matches connect failures at the DNS, TCP or timeout level.
	ErrConnection = errors.New("broker unreachable")
	// ErrCertificate matches TLS certificate validation failures.
	ErrCertificate = errors.New("broker certificate rejected")
	// ErrAuthRejected matches a CONNACK with a non-zero return code.
	ErrAuthRejected = errors.New("broker refused connection")

	ErrEmptyTopic   = errors.New("topic cannot be empty")
	ErrClosed       = errors.New("connection closed")
	ErrNotConnected = errors.New("connection lost")
)

// Kind classifies why a connect attempt failed.
type Kind string

const (
	KindTransport   Kind = "transport"
	KindCertificate Kind = "certificate"
	KindRejected    Kind = "rejected"
)

// ConnectError is returned by Dialer.Connect when no session could be
// established. Code is the CONNACK return code and is only meaningful for
// KindRejected.
type ConnectError struct {
	Kind   Kind
	Broker string
	Code   byte
	Err    error
}

func (e *ConnectError) Error() string {
	switch e.Kind {
	case KindRejected:
		return fmt.Sprintf("connect %s: %s (code %d)", e.Broker, ReturnCodeText(e.Code), e.Code)
	case KindCertificate:
		return fmt.Sprintf("connect %s: certificate validation failed: %v", e.Broker, e.Err)
	default:
		return fmt.Sprintf("connect %s: %v", e.Broker, e.Err)
	}
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Is lets callers match on the failure class with errors.Is.
func (e *ConnectError) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Kind == KindTransport
	case ErrCertificate:
		return e.Kind == KindCertificate
	case ErrAuthRejected:
		return e.Kind == KindRejected
	}
	return false
}

// KindOf returns the connect failure kind of err, or "" when err is not a
// *ConnectError.
func KindOf(err error) Kind {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// ReturnCodeText describes a CONNACK return code.
func ReturnCodeText(code byte) string {
	if text, ok := packets.ConnackReturnCodes[code]; ok {
		return strings.ToLower(text)
	}
	return "unknown return code"
}

var refusedErrors = map[error]byte{
	packets.ErrorRefusedBadProtocolVersion:    packets.ErrRefusedBadProtocolVersion,
	packets.ErrorRefusedIDRejected:            packets.ErrRefusedIDRejected,
	packets.ErrorRefusedServerUnavailable:     packets.ErrRefusedServerUnavailable,
	packets.ErrorRefusedBadUsernameOrPassword: packets.ErrRefusedBadUsernameOrPassword,
	packets.ErrorRefusedNotAuthorised:         packets.ErrRefusedNotAuthorised,
}

func isRefusal(code byte) bool {
	return code >= packets.ErrRefusedBadProtocolVersion && code <= packets.ErrRefusedNotAuthorised
}

// classify turns the outcome of a failed connect token into a ConnectError.
func classify(addr string, code byte, err error) *ConnectError {
	if isRefusal(code) {
		return &ConnectError{Kind: KindRejected, Broker: addr, Code: code, Err: err}
	}
	for refused, rc := range refusedErrors {
		if errors.Is(err, refused) {
			return &ConnectError{Kind: KindRejected, Broker: addr, Code: rc, Err: err}
		}
	}
	if isCertificateError(err) {
		return &ConnectError{Kind: KindCertificate, Broker: addr, Err: err}
	}
	return &ConnectError{Kind: KindTransport, Broker: addr, Err: err}
}

func isCertificateError(err error) bool {
	if err == nil {
		return false
	}

	var (
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	if errors.As(err, &verifyErr) || errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) || errors.As(err, &invalidErr) {
		return true
	}

	// paho flattens dial errors into text in some paths.
	msg := err.Error()
	return strings.Contains(msg, "x509:") || strings.Contains(msg, "failed to verify certificate")
}
