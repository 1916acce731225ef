package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/netsim/sim"
	"github.com/inference-sim/netsim/sim/network"
	"github.com/inference-sim/netsim/sim/trace"
)

// KindMessage is the packet kind flooded around the broadcast ring.
const KindMessage sim.Kind = "broadcast.message"

// Message is a hop-limited broadcast payload.
type Message struct {
	HTL int // hops to live
}

// RingNode forwards every message to its neighbors until HTL runs out.
type RingNode struct {
	*network.Node
	received int
	log      *trace.DataSet
}

// Received returns how many messages reached the node.
func (n *RingNode) Received() int { return n.received }

func (n *RingNode) handleMessage(ev *sim.Event) error {
	pkt := ev.Payload.(*network.Packet)
	msg, ok := pkt.Payload.(Message)
	if !ok {
		return fmt.Errorf("broadcast packet carries %T, want Message", pkt.Payload)
	}
	n.received++
	logrus.Debugf("[tick %07d] node %d got message, htl %d", ev.Time, n.Addr(), msg.HTL)
	return n.forward(msg)
}

func (n *RingNode) forward(msg Message) error {
	msg.HTL--
	n.log.Log(int64(n.Addr()), msg.HTL)
	if msg.HTL <= 0 {
		return nil
	}
	return n.SendPacket(KindMessage, n.Neighbors(), msg)
}

// Broadcast is a ring of nodes, each linked to its predecessor, passing one
// message around.
type Broadcast struct {
	sim   *sim.Simulator
	topo  *network.Topology
	nodes []*RingNode
}

// NewBroadcast builds the ring and starts a message with the given hops to
// live at the first node.
func NewBroadcast(env Env, latency sim.LatencyConfig, n, htl int) (*Broadcast, error) {
	if n < 2 {
		return nil, fmt.Errorf("broadcast needs at least 2 nodes, got %d", n)
	}
	topo, err := network.NewTopology(env.Sim, latency)
	if err != nil {
		return nil, err
	}
	log := env.registry().DataSet("broadcast")
	b := &Broadcast{sim: env.Sim, topo: topo}
	for i := 0; i < n; i++ {
		node := &RingNode{Node: network.NewNode(topo), log: log}
		node.On(KindMessage, node.handleMessage)
		b.nodes = append(b.nodes, node)
	}
	for i, node := range b.nodes {
		node.Link(b.nodes[(i+n-1)%n].Addr())
	}
	if err := b.nodes[0].forward(Message{HTL: htl + 1}); err != nil {
		return nil, err
	}
	return b, nil
}

// Name implements Scenario.
func (b *Broadcast) Name() string { return NameBroadcast }

// Nodes returns the ring in construction order.
func (b *Broadcast) Nodes() []*RingNode { return b.nodes }

// Summarize reports message, reach and packet counts.
func (b *Broadcast) Summarize() *Summary {
	sum := newSummary(b.Name(), b.sim)
	var total, reached uint64
	for _, n := range b.nodes {
		total += uint64(n.received)
		if n.received > 0 {
			reached++
		}
	}
	st := b.topo.Stats()
	sum.Counters["messages"] = total
	sum.Counters["reached"] = reached
	sum.Counters["packets_sent"] = st.Sent
	sum.Counters["packets_failed"] = st.Failed
	return sum
}
