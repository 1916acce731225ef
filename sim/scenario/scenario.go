// Package scenario bundles small example protocols that exercise the engine
// end to end. Each scenario wires its entities onto an Env and reports a
// Summary after the run.
package scenario

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/netsim/sim"
	"github.com/inference-sim/netsim/sim/rpc"
	"github.com/inference-sim/netsim/sim/trace"
)

// Scenario names accepted by Build.
const (
	NameProducerConsumer = "producer-consumer"
	NameBroadcast        = "broadcast"
	NameLiveness         = "liveness"
	NameRPCFlood         = "rpc-flood"
)

// Names lists every scenario Build knows.
var Names = []string{NameProducerConsumer, NameBroadcast, NameLiveness, NameRPCFlood}

// Env carries the run context into a scenario.
type Env struct {
	Sim   *sim.Simulator
	Trace *trace.Registry // nil = records are discarded
	// Metrics, when set, is installed on every RPC node.
	Metrics *rpc.Metrics
}

func (e Env) registry() *trace.Registry {
	if e.Trace == nil {
		return trace.NewRegistry(e.Sim, nil)
	}
	return e.Trace
}

// Scenario is a configured protocol ready to run.
type Scenario interface {
	Name() string
	Summarize() *Summary
}

// Summary reports the outcome of a run.
type Summary struct {
	Name       string
	Now        int64
	Dispatched uint64
	Entities   int
	Counters   map[string]uint64
}

func newSummary(name string, s *sim.Simulator) *Summary {
	return &Summary{
		Name:       name,
		Now:        s.Now(),
		Dispatched: s.Dispatched(),
		Entities:   s.NumEntities(),
		Counters:   make(map[string]uint64),
	}
}

// CounterNames returns the counter keys in sorted order.
func (s *Summary) CounterNames() []string {
	names := make([]string, 0, len(s.Counters))
	for n := range s.Counters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build sets up the scenario selected by cfg.Scenario.Name on env.
func Build(env Env, cfg sim.Config) (Scenario, error) {
	sc := cfg.Scenario
	switch sc.Name {
	case NameProducerConsumer, "":
		return NewProducerConsumer(env, sc.Items, sc.Spacing)
	case NameBroadcast:
		return NewBroadcast(env, cfg.Latency, sc.Nodes, sc.TTL)
	case NameLiveness:
		return NewLiveness(env, cfg.Latency, sc.Items, sc.KillAt)
	case NameRPCFlood:
		return NewRPCFlood(env, cfg.Latency, sc.Nodes, sc.Connectivity)
	default:
		return nil, fmt.Errorf("unknown scenario %q", sc.Name)
	}
}

// Run builds the configured scenario, runs the simulator to the configured
// horizon and summarizes the result.
func Run(env Env, cfg sim.Config) (*Summary, error) {
	sc, err := Build(env, cfg)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Running scenario %s (seed %d)", sc.Name(), cfg.Seed)
	if err := env.Sim.Run(cfg.RunBound()); err != nil {
		return nil, fmt.Errorf("running %s: %w", sc.Name(), err)
	}
	return sc.Summarize(), nil
}
