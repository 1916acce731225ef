package deferred

import (
	"errors"
	"fmt"
)

// ErrFailed is the cause of a Failure created without an explicit error.
var ErrFailed = errors.New("failed")

// Failure is the failure variant of a Result. Value carries whatever the
// failing side wants to hand to errbacks, such as the undelivered request.
type Failure struct {
	Err   error
	Value any
}

// NewFailure builds a Failure. A nil err becomes ErrFailed.
func NewFailure(err error, value any) *Failure {
	if err == nil {
		err = ErrFailed
	}
	return &Failure{Err: err, Value: value}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("failure: %v", f.Value)
	}
	return f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Result is the value flowing through a chain: either a success value, which
// may be nil, or a *Failure.
type Result struct {
	value   any
	failure *Failure
}

// Success wraps v as a success Result.
func Success(v any) Result { return Result{value: v} }

// Fail wraps f as a failure Result. A nil f is replaced by a generic Failure.
func Fail(f *Failure) Result {
	if f == nil {
		f = NewFailure(nil, nil)
	}
	return Result{failure: f}
}

// FromError returns Success(v) when err is nil and a failure wrapping err otherwise.
func FromError(v any, err error) Result {
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			return Fail(f)
		}
		return Fail(&Failure{Err: err, Value: v})
	}
	return Success(v)
}

// IsFailure reports whether r is the failure variant.
func (r Result) IsFailure() bool { return r.failure != nil }

// Value returns the success value, or nil for a failure.
func (r Result) Value() any { return r.value }

// Failure returns the failure, or nil for a success.
func (r Result) Failure() *Failure { return r.failure }

// Err returns the failure as an error, or nil for a success.
func (r Result) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

func (r Result) String() string {
	if r.failure != nil {
		return "failure(" + r.failure.Error() + ")"
	}
	return fmt.Sprintf("success(%v)", r.value)
}
