package network

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/netsim/sim"
)

// Node is a network participant. Application types embed *Node and bind their
// packet kinds with On; delivered packets arrive as *Packet payloads.
type Node struct {
	*sim.Entity
	topo      *Topology
	addr      Addr
	alive     bool
	neighbors []Addr
	failed    uint64
}

// NewNode creates a live node, registers it with the simulator and binds its
// entity id as its address in topo.
func NewNode(topo *Topology) *Node {
	n := &Node{
		Entity: sim.NewEntity(topo.sim),
		topo:   topo,
		alive:  true,
	}
	n.addr = Addr(n.ID())
	n.On(KindLiveness, n.handleLiveness)
	n.On(KindFailedPacket, n.handleFailedPacket)
	topo.Register(n)
	return n
}

// Addr returns the node's address.
func (n *Node) Addr() Addr { return n.addr }

// Topology returns the topology the node is registered with.
func (n *Node) Topology() *Topology { return n.topo }

// Alive reports the current liveness flag.
func (n *Node) Alive() bool { return n.alive }

// SetAlive changes the liveness flag immediately.
func (n *Node) SetAlive(alive bool) { n.alive = alive }

// FailedPackets returns how many failures the default handler has seen.
func (n *Node) FailedPackets() uint64 { return n.failed }

// Link adds neighbors to the adjacency list, ignoring duplicates and self.
// The topology never consults it; it is for application-level routing.
func (n *Node) Link(addrs ...Addr) {
	for _, a := range addrs {
		if a == n.addr || n.IsNeighbor(a) {
			continue
		}
		n.neighbors = append(n.neighbors, a)
	}
}

// IsNeighbor reports whether addr is linked.
func (n *Node) IsNeighbor(addr Addr) bool {
	for _, a := range n.neighbors {
		if a == addr {
			return true
		}
	}
	return false
}

// Neighbors returns a copy of the adjacency list in link order.
func (n *Node) Neighbors() []Addr {
	out := make([]Addr, len(n.neighbors))
	copy(out, n.neighbors)
	return out
}

// SendPacket sends payload to each receiver as an event of the given kind.
func (n *Node) SendPacket(kind sim.Kind, receivers []Addr, payload any) error {
	return n.topo.Send(kind, n.addr, receivers, payload)
}

func (n *Node) handleLiveness(ev *sim.Event) error {
	l, ok := ev.Payload.(Liveness)
	if !ok {
		return fmt.Errorf("liveness event carries %T, want Liveness", ev.Payload)
	}
	logrus.Debugf("[tick %07d] node %d alive=%t", ev.Time, n.addr, l.Alive)
	n.alive = l.Alive
	return nil
}

// handleFailedPacket is the default; applications replace it with On.
func (n *Node) handleFailedPacket(ev *sim.Event) error {
	n.failed++
	if fp, ok := ev.Payload.(*FailedPacket); ok {
		logrus.Debugf("[tick %07d] node %d got a failed packet for %d (%T)", ev.Time, n.addr, fp.Dest, fp.Payload)
	}
	return nil
}
