package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// TimeoutFunc is invoked each time an active Timeout fires.
type TimeoutFunc func(t *Timeout) error

// Timeout is an entity that calls back after an interval, optionally
// re-arming itself. Canceling only clears the active flag: a firing that is
// already queued is still delivered but does nothing.
type Timeout struct {
	id       EntityID
	owner    EntityID
	sim      *Simulator
	interval int64
	periodic bool
	active   bool
	fn       TimeoutFunc

	// gen identifies the current arming; firings from earlier armings are stale.
	gen   uint64
	fired int
}

// NewTimeout registers a timeout for owner and schedules its first firing
// interval ticks from now. A periodic timeout needs a positive interval.
func NewTimeout(s *Simulator, owner EntityID, interval int64, periodic bool, fn TimeoutFunc) (*Timeout, error) {
	if interval < 0 || (periodic && interval == 0) {
		return nil, fmt.Errorf("timeout for entity %d with interval %d (periodic=%t): %w", owner, interval, periodic, ErrInvalidDelay)
	}
	t := &Timeout{
		owner:    owner,
		sim:      s,
		interval: interval,
		periodic: periodic,
		fn:       fn,
	}
	t.id = s.Register(t)
	if err := t.Start(); err != nil {
		return nil, err
	}
	return t, nil
}

// ID returns the timeout's own entity id.
func (t *Timeout) ID() EntityID { return t.id }

// Owner returns the entity that created the timeout.
func (t *Timeout) Owner() EntityID { return t.owner }

// Interval returns the delay between firings.
func (t *Timeout) Interval() int64 { return t.interval }

// Periodic reports whether the timeout re-arms after firing.
func (t *Timeout) Periodic() bool { return t.periodic }

// Active reports whether the timeout will run its callback on the next firing.
func (t *Timeout) Active() bool { return t.active }

// Fired returns how many times the callback has run.
func (t *Timeout) Fired() int { return t.fired }

// Start (re-)activates the timeout and arms it interval ticks from now.
func (t *Timeout) Start() error {
	t.active = true
	t.gen++
	logrus.Debugf("Timeout started for %d in %d units", t.owner, t.interval)
	return t.sim.Schedule(KindTimeout, t.id, t.interval, t.gen)
}

// Cancel deactivates the timeout.
func (t *Timeout) Cancel() {
	t.active = false
	logrus.Debugf("Timeout stopped for %d", t.owner)
}

// Handle implements Handler.
func (t *Timeout) Handle(ev *Event) error {
	if ev.Kind != KindTimeout {
		return fmt.Errorf("timeout %d: %w %q", t.id, ErrUnknownKind, ev.Kind)
	}
	gen, _ := ev.Payload.(uint64)
	if gen != t.gen || !t.active {
		return nil
	}

	t.fired++
	if t.fn != nil {
		if err := t.fn(t); err != nil {
			return err
		}
	}
	// Checked again: the callback may have canceled or restarted the timeout.
	if t.active && t.periodic && gen == t.gen {
		return t.sim.Schedule(KindTimeout, t.id, t.interval, t.gen)
	}
	return nil
}
