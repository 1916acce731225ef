package scenario

import (
	"fmt"

	"github.com/inference-sim/netsim/sim"
	"github.com/inference-sim/netsim/sim/network"
)

// KindProbe triggers a send on the liveness sender and is also the packet kind.
const KindProbe sim.Kind = "liveness.probe"

// LivenessInterval separates consecutive probes.
const LivenessInterval int64 = 1000

// probeNode sends a probe to its neighbors when kicked and counts failures.
type probeNode struct {
	*network.Node
	delivered int
	failed    int
}

func (n *probeNode) handleProbe(ev *sim.Event) error {
	if _, ok := ev.Payload.(*network.Packet); ok {
		n.delivered++
		return nil
	}
	return n.SendPacket(KindProbe, n.Neighbors(), ev.Payload)
}

func (n *probeNode) handleFailed(ev *sim.Event) error {
	n.failed++
	return nil
}

// Liveness sends probes from A to B at a fixed interval and kills B partway.
type Liveness struct {
	sim  *sim.Simulator
	a, b *probeNode
}

// NewLiveness schedules probes A→B at 0, LivenessInterval, ... and takes B
// down at killAt.
func NewLiveness(env Env, latency sim.LatencyConfig, probes int, killAt int64) (*Liveness, error) {
	topo, err := network.NewTopology(env.Sim, latency)
	if err != nil {
		return nil, err
	}
	newProbe := func() *probeNode {
		n := &probeNode{Node: network.NewNode(topo)}
		n.On(KindProbe, n.handleProbe)
		n.On(network.KindFailedPacket, n.handleFailed)
		return n
	}
	l := &Liveness{sim: env.Sim, a: newProbe(), b: newProbe()}
	l.a.Link(l.b.Addr())

	for i := 0; i < probes; i++ {
		if err := env.Sim.Schedule(KindProbe, l.a.ID(), int64(i)*LivenessInterval, i); err != nil {
			return nil, fmt.Errorf("scheduling probe %d: %w", i, err)
		}
	}
	if err := topo.ScheduleLiveness(l.b.Addr(), killAt, false); err != nil {
		return nil, err
	}
	return l, nil
}

// Name implements Scenario.
func (l *Liveness) Name() string { return NameLiveness }

// Failed returns how many probes came back undeliverable.
func (l *Liveness) Failed() int { return l.a.failed }

// Delivered returns how many probes reached B.
func (l *Liveness) Delivered() int { return l.b.delivered }

// Summarize reports delivered and failed probes.
func (l *Liveness) Summarize() *Summary {
	sum := newSummary(l.Name(), l.sim)
	sum.Counters["delivered"] = uint64(l.b.delivered)
	sum.Counters["failed"] = uint64(l.a.failed)
	return sum
}
