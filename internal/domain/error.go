package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound = errors.New("entity not found")

	// Entitlement errors. Handlers map these to status codes with errors.Is.
	ErrInvalidRequest         = errors.New("invalid request")
	ErrUnauthorized           = errors.New("webhook signature verification failed")
	ErrPermanentNoOp          = errors.New("webhook event cannot be applied")
	ErrStoreUnavailable       = errors.New("entitlement store unavailable")
	ErrCheckoutCreationFailed = errors.New("checkout creation failed")
	ErrConcurrentUpdate       = errors.New("concurrent update, retries exhausted")
)

// ProviderError carries the payment provider's diagnostic message for a failed
// checkout. It unwraps to ErrCheckoutCreationFailed.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", ErrCheckoutCreationFailed, e.Provider, msg)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCheckoutCreationFailed, e.Err}
	}
	return []error{ErrCheckoutCreationFailed}
}

// InvalidRequest wraps ErrInvalidRequest with a field-specific reason.
func InvalidRequest(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}
