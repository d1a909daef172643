package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired        = sterrors.New("omnibridge: configuration is required")
	ErrLoggerRequired        = sterrors.New("omnibridge: logger is required")
	ErrSourceRequired        = sterrors.New("omnibridge: ingress source is required")
	ErrPublisherRequired     = sterrors.New("omnibridge: publisher is required")
	ErrRoutingKeyRequired    = sterrors.New("omnibridge: routing key is required")
	ErrInvalidPayload        = sterrors.New("omnibridge: invalid envelope payload")
	ErrReceiveErrorsExceeded = sterrors.New("omnibridge: consecutive receive errors exceeded limit")

	// Category sentinels matched through errors.Is on the typed errors below.
	ErrBind          = sterrors.New("omnibridge: ingress bind failed")
	ErrBrokerConnect = sterrors.New("omnibridge: broker connect failed")
	ErrDecode        = sterrors.New("omnibridge: envelope decode failed")
	ErrTransport     = sterrors.New("omnibridge: ingress transport failed")
	ErrPublish       = sterrors.New("omnibridge: egress publish failed")
)

// BindError reports that the ingress socket could not listen on Address.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("omnibridge: bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func (e *BindError) Is(target error) bool { return target == ErrBind }

// BrokerConnectError reports that the egress broker could not be reached.
type BrokerConnectError struct {
	Transport string
	Err       error
}

func (e *BrokerConnectError) Error() string {
	return fmt.Sprintf("omnibridge: connect %s broker: %v", e.Transport, e.Err)
}

func (e *BrokerConnectError) Unwrap() error { return e.Err }

func (e *BrokerConnectError) Is(target error) bool { return target == ErrBrokerConnect }

// DecodeError reports malformed envelope bytes. Offset is the byte position
// where decoding stopped, or -1 when unknown.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Offset < 0 {
		return "omnibridge: decode envelope: " + e.Reason
	}
	return fmt.Sprintf("omnibridge: decode envelope at byte %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// TransportError reports an ingress socket failure after a successful bind.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("omnibridge: ingress %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// PublishError reports that the broker refused or could not accept a message.
type PublishError struct {
	RoutingKey string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("omnibridge: publish %s: %v", e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool { return target == ErrPublish }

// ConfigValidationError wraps the joined configuration issues.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "omnibridge: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
