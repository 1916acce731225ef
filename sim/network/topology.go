// Package network simulates a packet network on top of the sim event loop.
//
// A Topology owns the address registry and the latency model. Sends become
// KindDeliver events addressed to the Topology; when one fires, the
// destination's liveness is checked at that moment, so a packet already in
// flight resolves against the node's status at delivery, not at send time.
package network

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/netsim/sim"
)

// TopologyStats counts packet outcomes since the last reset.
type TopologyStats struct {
	Sent      uint64
	Delivered uint64
	Failed    uint64
	Dropped   uint64 // failures whose sender is no longer registered
}

// Topology routes packets between registered nodes. It is itself an entity
// and re-registers after every simulator reset.
type Topology struct {
	*sim.Entity
	sim     *sim.Simulator
	cfg     sim.LatencyConfig
	latency LatencyModel
	nodes   map[Addr]*Node
	stats   TopologyStats
}

// NewTopology creates a topology bound to s with the given latency parameters.
func NewTopology(s *sim.Simulator, cfg sim.LatencyConfig) (*Topology, error) {
	t := &Topology{
		sim: s,
		cfg: cfg,
	}
	if err := t.init(); err != nil {
		return nil, err
	}
	s.AddResetObserver(t)
	return t, nil
}

func (t *Topology) init() error {
	latency, err := NewLatencyModel(t.cfg, t.sim.RNG().ForSubsystem(sim.SubsystemNetwork))
	if err != nil {
		return fmt.Errorf("building latency model: %w", err)
	}
	t.latency = latency
	t.nodes = make(map[Addr]*Node)
	t.stats = TopologyStats{}
	t.Entity = sim.NewEntity(t.sim)
	t.On(KindDeliver, t.handleDeliver)
	return nil
}

// SimulatorReset implements sim.ResetObserver.
func (t *Topology) SimulatorReset(s *sim.Simulator) {
	logrus.Debugf("Resetting Topology...")
	// The config was validated when first used, so rebuilding cannot fail.
	if err := t.init(); err != nil {
		logrus.Errorf("resetting topology: %v", err)
	}
	logrus.Debugf("Topology now has id %d", t.ID())
}

// SetLatency replaces the latency model.
func (t *Topology) SetLatency(cfg sim.LatencyConfig) error {
	latency, err := NewLatencyModel(cfg, t.sim.RNG().ForSubsystem(sim.SubsystemNetwork))
	if err != nil {
		return err
	}
	t.cfg = cfg
	t.latency = latency
	return nil
}

// SetLatencyModel installs a custom latency model. It is discarded on reset.
func (t *Topology) SetLatencyModel(m LatencyModel) {
	t.latency = m
}

// DrawLatency samples one packet delay.
func (t *Topology) DrawLatency() int64 {
	return t.latency.Draw()
}

// Register binds node.Addr() to node. The latest registration wins.
func (t *Topology) Register(node *Node) {
	t.nodes[node.Addr()] = node
}

// Node returns the node registered at addr, or nil.
func (t *Topology) Node(addr Addr) *Node {
	return t.nodes[addr]
}

// Addrs returns the registered addresses in ascending order.
func (t *Topology) Addrs() []Addr {
	addrs := make([]Addr, 0, len(t.nodes))
	for a := range t.nodes {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Stats returns the packet counters.
func (t *Topology) Stats() TopologyStats {
	return t.stats
}

// Send schedules one delivery per receiver, each after an independent latency
// draw. Packets sent together may therefore arrive out of order.
func (t *Topology) Send(kind sim.Kind, src Addr, receivers []Addr, payload any) error {
	for _, dest := range receivers {
		pkt := &Packet{Kind: kind, Src: src, Dest: dest, Payload: payload}
		if err := t.sim.Schedule(KindDeliver, t.ID(), t.DrawLatency(), pkt); err != nil {
			return fmt.Errorf("sending %s from %d to %d: %w", kind, src, dest, err)
		}
		t.stats.Sent++
	}
	return nil
}

// ScheduleLiveness flips the alive flag of the node at addr after delay.
// The flip is an ordinary event, so it interleaves with deliveries by time.
func (t *Topology) ScheduleLiveness(addr Addr, delay int64, alive bool) error {
	node := t.nodes[addr]
	if node == nil {
		return fmt.Errorf("scheduling liveness for unknown address %d", addr)
	}
	return t.sim.Schedule(KindLiveness, node.ID(), delay, Liveness{Alive: alive})
}

func (t *Topology) handleDeliver(ev *sim.Event) error {
	pkt, ok := ev.Payload.(*Packet)
	if !ok {
		return fmt.Errorf("deliver event carries %T, want *Packet", ev.Payload)
	}

	if node := t.nodes[pkt.Dest]; node != nil && node.Alive() {
		t.stats.Delivered++
		return t.sim.Schedule(pkt.Kind, node.ID(), 0, pkt)
	}

	t.stats.Failed++
	sender := t.nodes[pkt.Src]
	if sender == nil {
		t.stats.Dropped++
		logrus.Warnf("[tick %07d] dropping failed %s packet: sender %d is not registered", t.sim.Now(), pkt.Kind, pkt.Src)
		return nil
	}
	return t.sim.Schedule(KindFailedPacket, sender.ID(), 0, &FailedPacket{Dest: pkt.Dest, Payload: pkt.Payload})
}
