package network

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/netsim/sim"
)

// LatencyModel draws the delivery delay of a single packet.
type LatencyModel interface {
	// Draw returns a non-negative delay in ticks. Each call is an independent sample.
	Draw() int64
}

// UniformLatency draws integer delays uniformly from [base, base+mean).
type UniformLatency struct {
	base, mean int64
	dist       distuv.Uniform
}

func (u *UniformLatency) Draw() int64 {
	if u.mean == 0 {
		return u.base
	}
	d := int64(math.Floor(u.dist.Rand()))
	// Guard the open upper bound against float rounding.
	if d >= u.base+u.mean {
		d = u.base + u.mean - 1
	}
	return d
}

// PoissonLatency draws base + Poisson(mean).
type PoissonLatency struct {
	base int64
	dist distuv.Poisson
}

func (p *PoissonLatency) Draw() int64 {
	return p.base + int64(p.dist.Rand())
}

// FixedLatency always returns the same delay.
type FixedLatency int64

func (f FixedLatency) Draw() int64 {
	return int64(f)
}

// NewLatencyModel creates a LatencyModel from a LatencyConfig, drawing from src.
// An empty distribution name selects uniform.
func NewLatencyModel(cfg sim.LatencyConfig, src rand.Source) (LatencyModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Distribution {
	case sim.LatencyUniform, "":
		return &UniformLatency{
			base: cfg.Base,
			mean: cfg.Mean,
			dist: distuv.Uniform{Min: float64(cfg.Base), Max: float64(cfg.Base + cfg.Mean), Src: src},
		}, nil
	case sim.LatencyPoisson:
		return &PoissonLatency{
			base: cfg.Base,
			dist: distuv.Poisson{Lambda: float64(cfg.Mean), Src: src},
		}, nil
	case sim.LatencyFixed:
		return FixedLatency(cfg.Base), nil
	default:
		return nil, fmt.Errorf("unknown latency distribution %q", cfg.Distribution)
	}
}
