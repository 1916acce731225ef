package distributed

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/netsim/sim"
)

// Participant runs its share of one tick.
type Participant interface {
	RunTick(ctx context.Context, tick int64) error
}

// RunLocal registers every participant with coord and drives each one on its
// own goroutine until the end time. The first error cancels the others. coord
// must expect exactly len(participants) participants.
func RunLocal(ctx context.Context, coord *Coordinator, endTime int64, participants ...Participant) error {
	ids := make([]int, len(participants))
	for i := range participants {
		id, err := coord.Register()
		if err != nil {
			return err
		}
		ids[i] = id
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(ctx, endTime) })
	for i, p := range participants {
		id := ids[i]
		g.Go(func() error { return drive(ctx, coord, id, p) })
	}
	return g.Wait()
}

func drive(ctx context.Context, coord *Coordinator, id int, p Participant) error {
	tick := coord.Tick()
	for {
		if err := p.RunTick(ctx, tick); err != nil {
			return fmt.Errorf("participant %d at tick %d: %w", id, tick, err)
		}
		next, err := coord.TickComplete(ctx, id)
		if errors.Is(err, ErrFinished) {
			return nil
		}
		if err != nil {
			return err
		}
		tick = next
	}
}

// SimParticipant advances a simulator by step virtual time units per tick.
type SimParticipant struct {
	sim  *sim.Simulator
	step int64
}

// NewSimParticipant wraps s. Tick n runs s up to n*step.
func NewSimParticipant(s *sim.Simulator, step int64) (*SimParticipant, error) {
	if step <= 0 {
		return nil, fmt.Errorf("tick step must be positive, got %d", step)
	}
	return &SimParticipant{sim: s, step: step}, nil
}

// RunTick implements Participant.
func (p *SimParticipant) RunTick(ctx context.Context, tick int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.sim.Run(tick * p.step)
}

// Simulator returns the wrapped simulator.
func (p *SimParticipant) Simulator() *sim.Simulator { return p.sim }
