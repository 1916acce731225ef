// Package deferred implements a callback chain for values that resolve later.
//
// A Deferred holds an ordered list of (callback, errback) pairs. Once it is
// resolved with Callback or Errback, the pairs run in order: a success Result
// goes to the next callback, a failure Result to the next errback, and
// whatever the handler returns becomes the input of the following pair. Pairs
// added after resolution run immediately against the current Result.
package deferred

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyFired is returned when a Deferred is resolved a second time.
	ErrAlreadyFired = errors.New("deferred already fired")
	// ErrNilFailure is returned by Errback when given a nil *Failure.
	ErrNilFailure = errors.New("errback requires a non-nil failure")
)

// Callback handles a success value.
type Callback func(value any) Result

// Errback handles a failure.
type Errback func(f *Failure) Result

type pair struct {
	cb Callback
	eb Errback
}

// Option configures a Deferred.
type Option func(*Deferred)

// WithDrainHook registers fn to run every time the chain has been fully drained.
// The hook sees the Deferred after the last pending pair has run.
func WithDrainHook(fn func(*Deferred)) Option {
	return func(d *Deferred) { d.onDrain = fn }
}

// Deferred is a single-resolution callback chain. It is not safe for
// concurrent use.
type Deferred struct {
	fired   bool
	result  Result
	chain   []pair
	paused  int
	running bool
	hasCB   bool
	hasEB   bool
	onDrain func(*Deferred)
}

// New returns an unfired Deferred.
func New(opts ...Option) *Deferred {
	d := &Deferred{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddCallbacks appends a pair. A nil handler passes its input through
// unchanged. If the Deferred has fired and is not paused, the chain drains
// before AddCallbacks returns.
func (d *Deferred) AddCallbacks(cb Callback, eb Errback) *Deferred {
	if cb != nil {
		d.hasCB = true
	}
	if eb != nil {
		d.hasEB = true
	}
	d.chain = append(d.chain, pair{cb: cb, eb: eb})
	if d.fired {
		d.drain()
	}
	return d
}

// AddCallback appends a success handler paired with a passthrough errback.
func (d *Deferred) AddCallback(cb Callback) *Deferred {
	return d.AddCallbacks(cb, nil)
}

// AddErrback appends a failure handler paired with a passthrough callback.
func (d *Deferred) AddErrback(eb Errback) *Deferred {
	return d.AddCallbacks(nil, eb)
}

// Callback resolves the Deferred with a success value.
func (d *Deferred) Callback(value any) error {
	return d.resolve(Success(value))
}

// Errback resolves the Deferred with a failure.
func (d *Deferred) Errback(f *Failure) error {
	if f == nil {
		return ErrNilFailure
	}
	return d.resolve(Fail(f))
}

func (d *Deferred) resolve(r Result) error {
	if d.fired {
		return ErrAlreadyFired
	}
	d.fired = true
	d.result = r
	d.drain()
	return nil
}

// Pause suspends draining until a matching Unpause.
func (d *Deferred) Pause() {
	d.paused++
}

// Unpause undoes one Pause. When the count reaches zero, draining resumes from
// the first pair that has not run yet.
func (d *Deferred) Unpause() {
	if d.paused == 0 {
		return
	}
	d.paused--
	if d.paused == 0 && d.fired {
		d.drain()
	}
}

// Paused reports whether at least one Pause is outstanding.
func (d *Deferred) Paused() bool { return d.paused > 0 }

// Fired reports whether Callback or Errback has been called.
func (d *Deferred) Fired() bool { return d.fired }

// Result returns the current value of the chain. It is the zero Result until
// the Deferred fires.
func (d *Deferred) Result() Result { return d.result }

// Pending returns the number of pairs that have not run yet.
func (d *Deferred) Pending() int { return len(d.chain) }

// HasCallbacks reports whether a non-passthrough callback was ever added.
func (d *Deferred) HasCallbacks() bool { return d.hasCB }

// HasErrbacks reports whether a non-passthrough errback was ever added.
func (d *Deferred) HasErrbacks() bool { return d.hasEB }

// drain runs pending pairs until the chain is empty or paused. A handler that
// adds pairs to its own Deferred does not recurse; the outer loop picks them up.
func (d *Deferred) drain() {
	if d.running || d.paused > 0 {
		return
	}
	d.running = true
	for len(d.chain) > 0 && d.paused == 0 {
		p := d.chain[0]
		d.chain = d.chain[1:]
		d.result = d.step(p)
	}
	d.running = false
	if len(d.chain) == 0 && d.paused == 0 && d.onDrain != nil {
		d.onDrain(d)
	}
}

func (d *Deferred) step(p pair) (out Result) {
	defer func() {
		if r := recover(); r != nil {
			out = Fail(panicFailure(r))
		}
	}()
	if d.result.IsFailure() {
		if p.eb == nil {
			return d.result
		}
		return p.eb(d.result.Failure())
	}
	if p.cb == nil {
		return d.result
	}
	return p.cb(d.result.Value())
}

func panicFailure(r any) *Failure {
	if err, ok := r.(error); ok {
		return &Failure{Err: fmt.Errorf("handler panicked: %w", err), Value: r}
	}
	return &Failure{Err: fmt.Errorf("handler panicked: %v", r), Value: r}
}
