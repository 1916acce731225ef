// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Forever is the run bound used by RunAll.
const Forever int64 = math.MaxInt64

// Handler receives the events addressed to a registered entity.
type Handler interface {
	Handle(ev *Event) error
}

// ResetObserver is notified, in registration order, after the simulator resets.
type ResetObserver interface {
	SimulatorReset(s *Simulator)
}

// Flusher persists buffered output. Registered flushers run at the end of every Run.
type Flusher interface {
	Flush() error
}

// Simulator is the core object that holds simulation time, the event queue and
// the entity registry. It is not safe for concurrent use.
type Simulator struct {
	clock int64
	queue eventQueue
	seq   uint64

	entities map[EntityID]Handler
	nextID   EntityID

	running bool
	stopped bool

	observers []ResetObserver
	flushers  []Flusher

	key        SimulationKey
	rng        *PartitionedRNG
	dispatched uint64
}

// NewSimulator creates an empty simulator whose randomness derives from key.
func NewSimulator(key SimulationKey) *Simulator {
	return &Simulator{
		queue:    make(eventQueue, 0),
		entities: make(map[EntityID]Handler),
		key:      key,
		rng:      NewPartitionedRNG(key),
	}
}

// Now returns the current virtual time.
func (s *Simulator) Now() int64 {
	return s.clock
}

// RNG returns the partitioned random source for this run.
func (s *Simulator) RNG() *PartitionedRNG {
	return s.rng
}

// QueueSize returns the number of pending events.
func (s *Simulator) QueueSize() int {
	return len(s.queue)
}

// NumEntities returns the number of registered entities.
func (s *Simulator) NumEntities() int {
	return len(s.entities)
}

// Dispatched returns how many events have been handled since the last reset.
func (s *Simulator) Dispatched() uint64 {
	return s.dispatched
}

// Running reports whether Run is currently draining the queue.
func (s *Simulator) Running() bool {
	return s.running
}

// Register adds h to the entity table and returns its newly assigned id.
func (s *Simulator) Register(h Handler) EntityID {
	id := s.nextID
	s.nextID++
	s.entities[id] = h
	return id
}

// Entity looks up a registered handler.
func (s *Simulator) Entity(id EntityID) (Handler, bool) {
	h, ok := s.entities[id]
	return h, ok
}

// AddResetObserver registers o to be notified on Reset.
func (s *Simulator) AddResetObserver(o ResetObserver) {
	s.observers = append(s.observers, o)
}

// AddFlusher registers f to be flushed when a Run completes.
func (s *Simulator) AddFlusher(f Flusher) {
	s.flushers = append(s.flushers, f)
}

// Schedule pushes a new event for dest at now+delay.
func (s *Simulator) Schedule(kind Kind, dest EntityID, delay int64, payload any) error {
	if delay < 0 {
		return fmt.Errorf("scheduling %s for entity %d with delay %d: %w", kind, dest, delay, ErrInvalidDelay)
	}
	if delay > Forever-s.clock {
		return fmt.Errorf("scheduling %s for entity %d: delay %d overflows the clock at %d: %w", kind, dest, delay, s.clock, ErrInvalidDelay)
	}
	s.seq++
	ev := &Event{
		Kind:    kind,
		Dest:    dest,
		Time:    s.clock + delay,
		Payload: payload,
		seq:     s.seq,
	}
	logrus.Debugf("Scheduling new %s event for %d at %d", kind, dest, ev.Time)
	s.queue.push(ev)
	return nil
}

// RunAll drains the queue without a time bound. The clock is left at the time
// of the last dispatched event.
func (s *Simulator) RunAll() error {
	return s.Run(Forever)
}

// Run dispatches every event with a fire time <= until, in (time, insertion)
// order. Calling Run from inside a handler is a no-op. On normal completion the
// clock advances to until so that elapsed time is monotonic even when nothing
// fired; a stop request or a failure leaves the clock where it was.
func (s *Simulator) Run(until int64) error {
	if s.running {
		return nil
	}
	s.running = true
	s.stopped = false
	defer func() { s.running = false }()

	logrus.Debugf("Running simulation until: %d", until)

	for !s.stopped {
		next := s.queue.peek()
		if next == nil || next.Time > until {
			break
		}
		ev := s.queue.pop()
		s.clock = ev.Time
		if err := s.dispatch(ev); err != nil {
			logrus.Errorf("[tick %07d] Simulation aborted: %v", s.clock, err)
			if ferr := s.flush(); ferr != nil {
				return errors.Join(err, ferr)
			}
			return err
		}
	}

	if !s.stopped && until != Forever && until > s.clock {
		s.clock = until
	}
	logrus.Infof("[tick %07d] Simulation ended", s.clock)
	return s.flush()
}

// Stop asks a running loop to return after the current event.
func (s *Simulator) Stop() {
	s.stopped = true
}

// Reset clears all queued events and registered entities, rewinds the clock
// and id counter to zero and notifies reset observers in registration order.
// A Reset from inside a handler also stops the running loop, which returns
// with the clock at zero.
func (s *Simulator) Reset() {
	s.clock = 0
	s.seq = 0
	s.queue = make(eventQueue, 0)
	s.entities = make(map[EntityID]Handler)
	s.nextID = 0
	s.stopped = s.running
	s.dispatched = 0
	s.rng = NewPartitionedRNG(s.key)

	for _, o := range s.observers {
		o.SimulatorReset(s)
	}
}

func (s *Simulator) dispatch(ev *Event) (err error) {
	h, ok := s.entities[ev.Dest]
	if !ok {
		return &MissingEntityError{Kind: ev.Kind, Dest: ev.Dest, Time: ev.Time}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &HandlerFault{Kind: ev.Kind, Dest: ev.Dest, Time: ev.Time, Payload: ev.Payload, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	logrus.Debugf("[tick %07d] Executing %s on %d", s.clock, ev.Kind, ev.Dest)
	if herr := h.Handle(ev); herr != nil {
		return &HandlerFault{Kind: ev.Kind, Dest: ev.Dest, Time: ev.Time, Payload: ev.Payload, Err: herr}
	}
	s.dispatched++
	return nil
}

func (s *Simulator) flush() error {
	var errs []error
	for _, f := range s.flushers {
		if err := f.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flushing trace output: %w", err))
		}
	}
	return errors.Join(errs...)
}
