// Package distributed synchronizes several simulators on a shared tick.
//
// A Coordinator is a barrier: every registered participant runs the current
// tick, reports it with TickComplete, and no one moves to the next tick until
// all of them have reported. Participants here live in one process; moving
// events between them is left to the caller.
package distributed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrFinished is returned by TickComplete once the end time has been run.
	ErrFinished = errors.New("coordinator finished")
	// ErrTooManyParticipants is returned by Register past the expected count.
	ErrTooManyParticipants = errors.New("too many participants")
	// ErrUnknownParticipant is returned for an id Register never handed out.
	ErrUnknownParticipant = errors.New("unknown participant")
	// ErrAlreadyReported is returned when a participant reports a tick twice.
	ErrAlreadyReported = errors.New("tick already reported")
)

// Coordinator runs the tick barrier. It is safe for concurrent use.
type Coordinator struct {
	mu       sync.Mutex
	expected int
	ids      int
	tick     int64
	reported map[int]bool
	finished bool
	ready    chan struct{} // closed once every participant registered
	tickDone chan struct{} // closed once every participant reported tick
	advance  chan struct{} // closed when tick moves on (or the run ends)
}

// NewCoordinator creates a barrier for expected participants.
func NewCoordinator(expected int) (*Coordinator, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("coordinator needs at least one participant, got %d", expected)
	}
	return &Coordinator{
		expected: expected,
		reported: make(map[int]bool),
		ready:    make(chan struct{}),
		tickDone: make(chan struct{}),
		advance:  make(chan struct{}),
	}, nil
}

// Register hands out the next participant id, starting at 0.
func (c *Coordinator) Register() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids >= c.expected {
		return 0, fmt.Errorf("%w: expected %d", ErrTooManyParticipants, c.expected)
	}
	id := c.ids
	c.ids++
	logrus.Debugf("Registered participant %d of %d", id+1, c.expected)
	if c.ids == c.expected {
		close(c.ready)
	}
	return id, nil
}

// Tick returns the tick participants are currently running.
func (c *Coordinator) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// TickComplete reports that participant id has finished the current tick and
// blocks until all participants have. It returns the next tick, or
// ErrFinished when the end time has been reached.
func (c *Coordinator) TickComplete(ctx context.Context, id int) (int64, error) {
	c.mu.Lock()
	if id < 0 || id >= c.ids {
		c.mu.Unlock()
		return 0, fmt.Errorf("%w %d", ErrUnknownParticipant, id)
	}
	if c.finished {
		t := c.tick
		c.mu.Unlock()
		return t, ErrFinished
	}
	if c.reported[id] {
		t := c.tick
		c.mu.Unlock()
		return t, fmt.Errorf("participant %d, tick %d: %w", id, t, ErrAlreadyReported)
	}
	c.reported[id] = true
	if len(c.reported) == c.expected {
		close(c.tickDone)
	}
	adv := c.advance
	c.mu.Unlock()

	select {
	case <-adv:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return c.tick, ErrFinished
	}
	return c.tick, nil
}

// Run waits for every expected participant to register, then releases ticks
// 1 through endTime one at a time. It returns once all participants have
// reported endTime.
func (c *Coordinator) Run(ctx context.Context, endTime int64) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	logrus.Infof("All %d participants registered, running to tick %d", c.expected, endTime)

	for {
		c.mu.Lock()
		done := c.tickDone
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		c.mu.Lock()
		if c.tick >= endTime {
			c.finished = true
			close(c.advance)
			c.mu.Unlock()
			logrus.Infof("[tick %07d] Distributed run ended", endTime)
			return nil
		}
		c.tick++
		c.reported = make(map[int]bool)
		c.tickDone = make(chan struct{})
		prev := c.advance
		c.advance = make(chan struct{})
		close(prev)
		c.mu.Unlock()
	}
}
