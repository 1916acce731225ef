package network

import "github.com/inference-sim/netsim/sim"

// Event kinds owned by the network layer.
const (
	// KindDeliver carries a *Packet to the Topology when its latency has elapsed.
	KindDeliver sim.Kind = "network.deliver"
	// KindFailedPacket carries a *FailedPacket back to a sender whose
	// destination was not alive at delivery time.
	KindFailedPacket sim.Kind = "network.failed_packet"
	// KindLiveness carries a Liveness flip to a node.
	KindLiveness sim.Kind = "network.liveness"
)

// Addr is a node's network address. Nodes default to their entity id.
type Addr int64

// Packet is the envelope that travels through the Topology. A delivered
// packet reaches the destination as the payload of an event of kind Kind.
type Packet struct {
	Kind    sim.Kind
	Src     Addr
	Dest    Addr
	Payload any
}

// FailedPacket is returned to the sender of an undeliverable packet.
type FailedPacket struct {
	Dest    Addr
	Payload any
}

// Liveness sets a node's alive flag when delivered.
type Liveness struct {
	Alive bool
}
