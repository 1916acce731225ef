package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDelay is returned by Schedule for a negative delay.
	ErrInvalidDelay = errors.New("invalid delay")
	// ErrMissingEntity marks an event addressed to an unregistered entity.
	ErrMissingEntity = errors.New("missing entity")
	// ErrUnknownKind is returned by an Entity that has no handler for an event kind.
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrHandlerFault marks a failure raised while an entity handled an event.
	ErrHandlerFault = errors.New("handler fault")
)

// MissingEntityError reports an event whose destination is not in the registry.
// It aborts the run loop: a missing destination is a wiring bug, not a
// simulated failure.
type MissingEntityError struct {
	Kind Kind
	Dest EntityID
	Time int64
}

func (e *MissingEntityError) Error() string {
	return fmt.Sprintf("%s event at %d addressed to unregistered entity %d", e.Kind, e.Time, e.Dest)
}

func (e *MissingEntityError) Unwrap() error { return ErrMissingEntity }

// HandlerFault wraps an error (or recovered panic) returned while dispatching
// an event, together with the event that caused it.
type HandlerFault struct {
	Kind    Kind
	Dest    EntityID
	Time    int64
	Payload any
	Err     error
}

func (f *HandlerFault) Error() string {
	return fmt.Sprintf("entity %d failed handling %s at %d (payload %v): %v", f.Dest, f.Kind, f.Time, f.Payload, f.Err)
}

// Unwrap exposes both the ErrHandlerFault sentinel and the underlying cause.
func (f *HandlerFault) Unwrap() []error { return []error{ErrHandlerFault, f.Err} }
