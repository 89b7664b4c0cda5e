package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry misuse.
var (
	// ErrNilCallback indicates Subscribe, Join, or Once was called without a callback.
	ErrNilCallback = errors.New("event: nil callback")

	// ErrNilHook indicates RegisterHook was called without a hook function.
	ErrNilHook = errors.New("event: nil hook")
)

// DeliveryError wraps an error returned by a subscriber callback.
type DeliveryError struct {
	Name           string // Event name being emitted
	SubscriptionID string // Subscription whose callback failed
	Err            error  // Error returned by the callback
}

// Error implements error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("event %s: subscription %s: %v", e.Name, e.SubscriptionID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// PanicError records a panic recovered from an EmitAsync subscriber or a
// lifecycle hook.
type PanicError struct {
	Value any
}

// Error implements error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("callback panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
