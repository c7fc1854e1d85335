package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned by NewRegistry for an unsupported type.
	ErrUnknownKind = errors.New("provider: unknown kind")

	// ErrNotFound means no provider is registered under a hash.
	ErrNotFound = errors.New("provider: not found")

	// ErrCallbackUnsupported means the provider has no callback handler.
	ErrCallbackUnsupported = errors.New("provider: callbacks not supported")

	// ErrDelivery is wrapped by every *DeliveryError.
	ErrDelivery = errors.New("provider: delivery failed")

	// ErrInvalidCallback means a callback payload was malformed or carried
	// an unknown option.
	ErrInvalidCallback = errors.New("provider: invalid callback")

	// ErrUserLookup means the acting user's name could not be resolved.
	ErrUserLookup = errors.New("provider: user lookup failed")
)

// DeliveryError describes a rejected send. Body carries the upstream
// response for logs; it is never returned to HTTP callers.
type DeliveryError struct {
	Provider string
	Chat     string // empty for forward providers
	Status   int
	Body     string
	Err      error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("provider %q: delivery failed", e.Provider)
	if e.Chat != "" {
		msg += fmt.Sprintf(" to chat %s", e.Chat)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDelivery}
	}
	return []error{ErrDelivery, e.Err}
}
