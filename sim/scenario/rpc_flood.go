package scenario

import (
	"fmt"

	"github.com/inference-sim/netsim/sim"
	"github.com/inference-sim/netsim/sim/deferred"
	"github.com/inference-sim/netsim/sim/network"
	"github.com/inference-sim/netsim/sim/rpc"
	"github.com/inference-sim/netsim/sim/trace"
)

// MethodPacket is the method flood nodes serve.
const MethodPacket rpc.Method = "packet"

// KindStartFlood makes a flood node originate a packet.
const KindStartFlood sim.Kind = "flood.start"

// FloodPacket is the payload passed between flood nodes.
type FloodPacket struct {
	Seq int
}

// FloodNode forwards each packet sequence number once to every peer.
type FloodNode struct {
	*rpc.Node
	peers  []*rpc.Peer
	seen   map[int]bool
	got    bool
	failed int
	log    *trace.DataSet
}

// GotMessage reports whether a packet reached the node through the network.
func (n *FloodNode) GotMessage() bool { return n.got }

// FailedCalls returns how many forwards came back as failures.
func (n *FloodNode) FailedCalls() int { return n.failed }

// AddNeighbor adds a peer unless addr is the node itself or already a peer.
func (n *FloodNode) AddNeighbor(addr network.Addr) {
	if addr == n.Addr() || n.IsNeighbor(addr) {
		return
	}
	n.Link(addr)
	n.peers = append(n.peers, rpc.NewPeer(n.Node, addr))
}

func (n *FloodNode) handlePacket(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("packet takes 1 argument, got %d", len(args))
	}
	pkt, ok := args[0].(FloodPacket)
	if !ok {
		return nil, fmt.Errorf("packet argument is %T, want FloodPacket", args[0])
	}
	n.got = true
	n.forward(pkt)
	return nil, nil
}

func (n *FloodNode) forward(pkt FloodPacket) {
	if n.seen[pkt.Seq] {
		return
	}
	n.seen[pkt.Seq] = true
	n.log.Log(int64(n.Addr()), pkt.Seq)
	for _, p := range n.peers {
		p.Call(MethodPacket, pkt).AddErrback(func(f *deferred.Failure) deferred.Result {
			n.failed++
			return deferred.Success(nil)
		})
	}
}

// RPCFlood floods one packet over a random graph of RPC nodes.
type RPCFlood struct {
	sim   *sim.Simulator
	topo  *network.Topology
	nodes []*FloodNode
}

// NewRPCFlood builds n nodes; each links to its successor in a ring and to
// between 1 and connectivity random others. The first node starts the flood
// at time 0.
func NewRPCFlood(env Env, latency sim.LatencyConfig, n, connectivity int) (*RPCFlood, error) {
	if n < 2 {
		return nil, fmt.Errorf("rpc flood needs at least 2 nodes, got %d", n)
	}
	if connectivity < 1 {
		connectivity = 1
	}
	topo, err := network.NewTopology(env.Sim, latency)
	if err != nil {
		return nil, err
	}
	log := env.registry().DataSet("flood")
	f := &RPCFlood{sim: env.Sim, topo: topo}
	for i := 0; i < n; i++ {
		node := &FloodNode{Node: rpc.NewNode(topo), seen: make(map[int]bool), log: log}
		node.Serve(MethodPacket, node.handlePacket)
		node.On(KindStartFlood, func(ev *sim.Event) error {
			node.forward(ev.Payload.(FloodPacket))
			return nil
		})
		if env.Metrics != nil {
			env.Metrics.Install(node.Node)
		}
		f.nodes = append(f.nodes, node)
	}

	rng := env.Sim.RNG().ForSubsystem(sim.SubsystemWorkload)
	for i, node := range f.nodes {
		node.AddNeighbor(f.nodes[(i+1)%n].Addr())
		for k := rng.IntN(connectivity) + 1; k > 0; k-- {
			node.AddNeighbor(f.nodes[rng.IntN(n)].Addr())
		}
	}

	if err := env.Sim.Schedule(KindStartFlood, f.nodes[0].ID(), 0, FloodPacket{Seq: 1}); err != nil {
		return nil, err
	}
	return f, nil
}

// Name implements Scenario.
func (f *RPCFlood) Name() string { return NameRPCFlood }

// Nodes returns the flood nodes in construction order.
func (f *RPCFlood) Nodes() []*FloodNode { return f.nodes }

// Summarize reports how many nodes the flood reached and how many calls failed
// or are still pending.
func (f *RPCFlood) Summarize() *Summary {
	sum := newSummary(f.Name(), f.sim)
	var reached, failed, pending uint64
	for _, n := range f.nodes {
		if n.got {
			reached++
		}
		failed += uint64(n.failed)
		pending += uint64(n.PendingCalls())
	}
	sum.Counters["nodes"] = uint64(len(f.nodes))
	sum.Counters["reached"] = reached
	sum.Counters["failed_calls"] = failed
	sum.Counters["pending_calls"] = pending
	return sum
}
