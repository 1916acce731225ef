package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kindMark Kind = "mark"

type recorder struct {
	*Entity
	labels []string
	times  []int64
}

func newRecorder(s *Simulator) *recorder {
	r := &recorder{Entity: NewEntity(s)}
	r.On(kindMark, func(ev *Event) error {
		r.labels = append(r.labels, ev.Payload.(string))
		r.times = append(r.times, ev.Time)
		return nil
	})
	return r
}

type countingFlusher struct{ calls int }

func (f *countingFlusher) Flush() error {
	f.calls++
	return nil
}

type orderObserver struct {
	name string
	log  *[]string
}

func (o orderObserver) SimulatorReset(*Simulator) {
	*o.log = append(*o.log, o.name)
}

func TestSimulator_Schedule_NegativeDelayRejected(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	r := newRecorder(s)

	err := s.Schedule(kindMark, r.ID(), -1, "x")

	assert.ErrorIs(t, err, ErrInvalidDelay)
	assert.Equal(t, 0, s.QueueSize())
}

func TestSimulator_Schedule_OverflowingDelayRejected(t *testing.T) {
	// GIVEN a handler at t=10 that tries to park an event at Forever
	s := NewSimulator(NewSimulationKey(1))
	r := newRecorder(s)
	var scheduleErr error
	e := NewEntity(s)
	e.On(kindMark, func(*Event) error {
		scheduleErr = s.Schedule(kindMark, r.ID(), Forever, "never")
		return nil
	})
	require.NoError(t, s.Schedule(kindMark, e.ID(), 10, nil))

	// WHEN the queue drains
	require.NoError(t, s.RunAll())

	// THEN the delay is rejected and the clock never goes backwards
	assert.ErrorIs(t, scheduleErr, ErrInvalidDelay)
	assert.Empty(t, r.times)
	assert.Equal(t, int64(10), s.Now())
	assert.Equal(t, 0, s.QueueSize())
}

func TestSimulator_Schedule_LargestDelayFitsAtTimeZero(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	r := newRecorder(s)

	require.NoError(t, s.Schedule(kindMark, r.ID(), Forever, "end"))
	require.NoError(t, s.Run(1000))

	assert.Equal(t, 1, s.QueueSize())
	assert.Equal(t, int64(1000), s.Now())
}

func TestSimulator_Run_DispatchesInTimeOrderWithFIFOTies(t *testing.T) {
	// GIVEN events scheduled out of time order, with several at equal times
	s := NewSimulator(NewSimulationKey(1))
	r := newRecorder(s)
	require.NoError(t, s.Schedule(kindMark, r.ID(), 30, "c1"))
	require.NoError(t, s.Schedule(kindMark, r.ID(), 10, "a1"))
	require.NoError(t, s.Schedule(kindMark, r.ID(), 30, "c2"))
	require.NoError(t, s.Schedule(kindMark, r.ID(), 20, "b1"))
	require.NoError(t, s.Schedule(kindMark, r.ID(), 10, "a2"))
	require.NoError(t, s.Schedule(kindMark, r.ID(), 30, "c3"))

	// WHEN the simulation runs to completion
	require.NoError(t, s.RunAll())

	// THEN times are non-decreasing and ties keep scheduling order
	assert.Equal(t, []string{"a1", "a2", "b1", "c1", "c2", "c3"}, r.labels)
	for i := 1; i < len(r.times); i++ {
		assert.LessOrEqual(t, r.times[i-1], r.times[i])
	}
	assert.Equal(t, int64(30), s.Now())
	assert.Equal(t, uint64(6), s.Dispatched())
}

func TestSimulator_Run_BoundedRunsNeverRedispatch(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	r := newRecorder(s)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Schedule(kindMark, r.ID(), int64(i*10), "e"))
	}

	require.NoError(t, s.Run(45))
	assert.Len(t, r.labels, 5)
	assert.Equal(t, int64(45), s.Now())
	assert.Equal(t, 5, s.QueueSize(), "events beyond the bound stay queued")

	require.NoError(t, s.Run(45))
	assert.Len(t, r.labels, 5, "re-running the same bound dispatches nothing")

	require.NoError(t, s.Run(1000))
	assert.Len(t, r.labels, 10)
	assert.Equal(t, int64(1000), s.Now())
}

func TestSimulator_Run_SingleStepping(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	r := newRecorder(s)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Schedule(kindMark, r.ID(), int64(i*10), "e"))
	}

	for i := int64(0); i < 100; i++ {
		require.NoError(t, s.Run(i))
		assert.Equal(t, i, s.Now())
	}
	assert.Len(t, r.labels, 10)
}

func TestSimulator_Run_ClockAdvancesOnEmptyQueue(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))

	require.NoError(t, s.Run(500))
	assert.Equal(t, int64(500), s.Now())

	// An earlier bound never moves the clock backwards.
	require.NoError(t, s.Run(100))
	assert.Equal(t, int64(500), s.Now())
}

func TestSimulator_Run_ProducerConsumer(t *testing.T) {
	// GIVEN a producer that schedules 10 items at t=0,10,...,90 to a consumer
	s := NewSimulator(NewSimulationKey(1))
	consumer := newRecorder(s)
	producer := NewEntity(s)
	for i := 0; i < 10; i++ {
		require.NoError(t, producer.Schedule(kindMark, consumer.ID(), int64(i*10), "item"))
	}
	assert.Equal(t, 10, s.QueueSize())

	// WHEN run without a bound
	require.NoError(t, s.RunAll())

	// THEN every item arrived and the clock rests on the last one
	assert.Len(t, consumer.labels, 10)
	assert.Equal(t, int64(90), s.Now())
}

func TestSimulator_Run_MissingEntityAborts(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	r := newRecorder(s)
	require.NoError(t, s.Schedule(kindMark, r.ID(), 5, "before"))
	require.NoError(t, s.Schedule(kindMark, EntityID(99), 10, "lost"))
	require.NoError(t, s.Schedule(kindMark, r.ID(), 15, "after"))

	err := s.RunAll()

	require.ErrorIs(t, err, ErrMissingEntity)
	var missing *MissingEntityError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, EntityID(99), missing.Dest)
	assert.Equal(t, []string{"before"}, r.labels)
	assert.Equal(t, int64(10), s.Now())
}

func TestSimulator_Run_HandlerFaultCarriesEvent(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name    string
		handler HandlerFunc
		isCause bool
	}{
		{name: "returned error", handler: func(*Event) error { return cause }, isCause: true},
		{name: "panic", handler: func(*Event) error { panic("kaboom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSimulator(NewSimulationKey(1))
			e := NewEntity(s)
			e.On("explode", tt.handler)
			require.NoError(t, s.Schedule("explode", e.ID(), 7, "payload"))
			require.NoError(t, s.Schedule("explode", e.ID(), 8, "never"))

			err := s.RunAll()

			require.ErrorIs(t, err, ErrHandlerFault)
			if tt.isCause {
				assert.ErrorIs(t, err, cause)
			}
			var fault *HandlerFault
			require.True(t, errors.As(err, &fault))
			assert.Equal(t, Kind("explode"), fault.Kind)
			assert.Equal(t, e.ID(), fault.Dest)
			assert.Equal(t, "payload", fault.Payload)
			assert.Equal(t, int64(7), fault.Time)
			assert.Equal(t, int64(7), s.Now(), "clock stays at the failed event")
			assert.Equal(t, 1, s.QueueSize())
		})
	}
}

func TestSimulator_Run_UnknownKindIsHandlerFault(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	r := newRecorder(s)
	require.NoError(t, s.Schedule("nope", r.ID(), 0, nil))

	err := s.RunAll()

	assert.ErrorIs(t, err, ErrHandlerFault)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSimulator_Stop_EndsLoopAfterCurrentEvent(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	e := NewEntity(s)
	count := 0
	e.On(kindMark, func(*Event) error {
		count++
		if count == 3 {
			s.Stop()
		}
		return nil
	})
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Schedule(kindMark, e.ID(), int64(i), "e"))
	}

	require.NoError(t, s.Run(100))
	assert.Equal(t, 3, count)
	assert.Equal(t, int64(2), s.Now(), "a stopped run does not jump to the bound")

	// A later run resumes with the remaining events.
	require.NoError(t, s.Run(100))
	assert.Equal(t, 10, count)
}

func TestSimulator_Run_ReentrantCallIsNoop(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	e := NewEntity(s)
	var inner error
	calls := 0
	e.On(kindMark, func(*Event) error {
		calls++
		assert.True(t, s.Running())
		inner = s.Run(1000)
		return nil
	})
	require.NoError(t, s.Schedule(kindMark, e.ID(), 1, nil))
	require.NoError(t, s.Schedule(kindMark, e.ID(), 2, nil))

	require.NoError(t, s.Run(10))

	assert.NoError(t, inner)
	assert.Equal(t, 2, calls)
	assert.False(t, s.Running())
}

func TestSimulator_Reset_ClearsStateAndNotifiesInOrder(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	var order []string
	s.AddResetObserver(orderObserver{name: "first", log: &order})
	s.AddResetObserver(orderObserver{name: "second", log: &order})
	r := newRecorder(s)
	_ = newRecorder(s)
	require.NoError(t, s.Schedule(kindMark, r.ID(), 10, "x"))
	require.NoError(t, s.Run(5))

	s.Reset()

	assert.Equal(t, 0, s.QueueSize())
	assert.Equal(t, 0, s.NumEntities())
	assert.Equal(t, int64(0), s.Now())
	assert.Equal(t, []string{"first", "second"}, order)
	_, ok := s.Entity(r.ID())
	assert.False(t, ok)
	assert.Equal(t, EntityID(0), NewEntity(s).ID(), "ids restart at zero")
}

func TestSimulator_Reset_DuringRunStopsTheLoop(t *testing.T) {
	// GIVEN a handler at t=10 that resets the simulator, and a later event
	s := NewSimulator(NewSimulationKey(1))
	e := NewEntity(s)
	e.On(kindMark, func(*Event) error {
		s.Reset()
		return nil
	})
	require.NoError(t, s.Schedule(kindMark, e.ID(), 10, nil))
	require.NoError(t, s.Schedule(kindMark, e.ID(), 20, nil))

	// WHEN running to 500
	require.NoError(t, s.Run(500))

	// THEN the rewind to zero survives the end of the run
	assert.Equal(t, int64(0), s.Now())
	assert.Equal(t, 0, s.NumEntities())
	assert.Equal(t, 0, s.QueueSize())

	// AND the next run starts normally
	r := newRecorder(s)
	require.NoError(t, s.Schedule(kindMark, r.ID(), 5, "after"))
	require.NoError(t, s.Run(50))
	assert.Equal(t, []int64{5}, r.times)
	assert.Equal(t, int64(50), s.Now())
}

func TestSimulator_Run_FlushesRegisteredFlushers(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	f := &countingFlusher{}
	s.AddFlusher(f)

	require.NoError(t, s.Run(10))
	require.NoError(t, s.RunAll())

	assert.Equal(t, 2, f.calls)
}

func TestEntity_IDsAreMonotonic(t *testing.T) {
	s := NewSimulator(NewSimulationKey(1))
	var prev EntityID = -1
	for i := 0; i < 5; i++ {
		e := NewEntity(s)
		assert.Greater(t, e.ID(), prev)
		prev = e.ID()
	}
	assert.Equal(t, 5, s.NumEntities())
}
