package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/netsim/sim"
)

const (
	kindPing sim.Kind = "ping"
	kindKick sim.Kind = "kick"
)

// testNode records delivered pings and failed packets. A kick event makes it
// send a ping to every neighbor.
type testNode struct {
	*Node
	deliveredAt []int64
	payloads    []any
	failures    []*FailedPacket
}

func newTestNode(topo *Topology) *testNode {
	n := &testNode{Node: NewNode(topo)}
	n.On(kindPing, func(ev *sim.Event) error {
		pkt := ev.Payload.(*Packet)
		n.deliveredAt = append(n.deliveredAt, ev.Time)
		n.payloads = append(n.payloads, pkt.Payload)
		return nil
	})
	n.On(KindFailedPacket, func(ev *sim.Event) error {
		n.failures = append(n.failures, ev.Payload.(*FailedPacket))
		return nil
	})
	n.On(kindKick, func(ev *sim.Event) error {
		return n.SendPacket(kindPing, n.Neighbors(), ev.Payload)
	})
	return n
}

func newTestTopology(t *testing.T, cfg sim.LatencyConfig) (*sim.Simulator, *Topology) {
	t.Helper()
	s := sim.NewSimulator(sim.NewSimulationKey(1234))
	topo, err := NewTopology(s, cfg)
	require.NoError(t, err)
	return s, topo
}

func TestTopology_Send_DeliveryWithinLatencyRange(t *testing.T) {
	// GIVEN latency {mean=150, base=30} and two linked nodes
	s, topo := newTestTopology(t, sim.LatencyConfig{Distribution: sim.LatencyUniform, Base: 30, Mean: 150})
	a := newTestNode(topo)
	b := newTestNode(topo)
	a.Link(b.Addr())

	// WHEN a sends 200 pings at t=1000
	for i := 0; i < 200; i++ {
		require.NoError(t, s.Schedule(kindKick, a.ID(), 1000, i))
	}
	require.NoError(t, s.RunAll())

	// THEN each delivery falls in [now+base, now+base+mean)
	require.Len(t, b.deliveredAt, 200)
	for _, at := range b.deliveredAt {
		assert.GreaterOrEqual(t, at, int64(1030))
		assert.Less(t, at, int64(1180))
	}
	assert.Equal(t, uint64(200), topo.Stats().Delivered)
}

func TestTopology_Send_IndependentDrawsReorderPackets(t *testing.T) {
	s, topo := newTestTopology(t, sim.LatencyConfig{Distribution: sim.LatencyUniform, Base: 0, Mean: 1000})
	a := newTestNode(topo)
	b := newTestNode(topo)
	a.Link(b.Addr())

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Schedule(kindKick, a.ID(), 0, i))
	}
	require.NoError(t, s.RunAll())

	require.Len(t, b.payloads, 50)
	inOrder := true
	for i, p := range b.payloads {
		if p.(int) != i {
			inOrder = false
		}
	}
	assert.False(t, inOrder, "concurrent sends to one destination should not all keep send order")
}

func TestTopology_Liveness_EvaluatedAtDeliveryTime(t *testing.T) {
	// GIVEN fixed latency 5 and B going down at exactly t=3005
	s, topo := newTestTopology(t, sim.LatencyConfig{Distribution: sim.LatencyFixed, Base: 5})
	a := newTestNode(topo)
	b := newTestNode(topo)
	a.Link(b.Addr())
	require.NoError(t, topo.ScheduleLiveness(b.Addr(), 3005, false))

	// WHEN A sends at 0, 1000, 2000, 2999, 3000, 4000
	for i, at := range []int64{0, 1000, 2000, 2999, 3000, 4000} {
		require.NoError(t, s.Schedule(kindKick, a.ID(), at, i))
	}
	require.NoError(t, s.RunAll())

	// THEN packets delivered before 3005 succeed, the rest come back failed
	assert.Equal(t, []int64{5, 1005, 2005, 3004}, b.deliveredAt)
	require.Len(t, a.failures, 2)
	assert.Equal(t, b.Addr(), a.failures[0].Dest)
	assert.Equal(t, 4, a.failures[0].Payload)
	assert.Equal(t, 5, a.failures[1].Payload)
	assert.False(t, b.Alive())
}

func TestTopology_Liveness_InFlightPacketsSeeDeliveryStatus(t *testing.T) {
	// GIVEN B is dead when the packet is sent but revives before it lands
	s, topo := newTestTopology(t, sim.LatencyConfig{Distribution: sim.LatencyFixed, Base: 100})
	a := newTestNode(topo)
	b := newTestNode(topo)
	a.Link(b.Addr())
	b.SetAlive(false)
	require.NoError(t, topo.ScheduleLiveness(b.Addr(), 50, true))
	require.NoError(t, s.Schedule(kindKick, a.ID(), 0, "late"))

	require.NoError(t, s.RunAll())

	assert.Equal(t, []int64{100}, b.deliveredAt)
	assert.Empty(t, a.failures)
}

func TestTopology_LivenessAndFailure_DefaultLatency(t *testing.T) {
	s, topo := newTestTopology(t, sim.LatencyConfig{Distribution: sim.LatencyUniform, Base: sim.DefaultLatencyBase, Mean: sim.DefaultLatencyMean})
	a := newTestNode(topo)
	b := newTestNode(topo)
	a.Link(b.Addr())

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Schedule(kindKick, a.ID(), int64(i*1000), i))
	}
	require.NoError(t, topo.ScheduleLiveness(b.Addr(), 5000, false))
	require.NoError(t, s.RunAll())

	assert.Len(t, a.failures, 5)
	assert.Len(t, b.deliveredAt, 5)
	assert.Equal(t, uint64(5), topo.Stats().Failed)
}

func TestTopology_UnknownDestinationFails(t *testing.T) {
	s, topo := newTestTopology(t, sim.LatencyConfig{Distribution: sim.LatencyFixed, Base: 1})
	a := newTestNode(topo)
	a.Link(Addr(404))
	require.NoError(t, s.Schedule(kindKick, a.ID(), 0, "x"))

	require.NoError(t, s.RunAll())

	require.Len(t, a.failures, 1)
	assert.Equal(t, Addr(404), a.failures[0].Dest)
}

func TestTopology_DefaultFailedPacketHandlerCounts(t *testing.T) {
	s, topo := newTestTopology(t, sim.LatencyConfig{Distribution: sim.LatencyFixed, Base: 1})
	a := NewNode(topo)
	b := NewNode(topo)
	b.SetAlive(false)

	require.NoError(t, a.SendPacket(kindPing, []Addr{b.Addr(), b.Addr()}, nil))
	require.NoError(t, s.RunAll())

	assert.Equal(t, uint64(2), a.FailedPackets())
}

func TestTopology_Register_LatestWins(t *testing.T) {
	_, topo := newTestTopology(t, sim.LatencyConfig{})
	n := NewNode(topo)
	other := NewNode(topo)
	other.addr = n.Addr()

	topo.Register(other)

	assert.Same(t, other, topo.Node(n.Addr()))
}

func TestTopology_Reset_ClearsNodesAndReregisters(t *testing.T) {
	s, topo := newTestTopology(t, sim.LatencyConfig{})
	NewNode(topo)
	NewNode(topo)
	assert.Len(t, topo.Addrs(), 2)

	s.Reset()

	assert.Empty(t, topo.Addrs())
	assert.Equal(t, sim.EntityID(0), topo.ID(), "topology re-registers first after reset")
	_, ok := s.Entity(topo.ID())
	assert.True(t, ok)
	n := NewNode(topo)
	assert.Equal(t, Addr(1), n.Addr())
}

func TestNode_Link_SkipsSelfAndDuplicates(t *testing.T) {
	_, topo := newTestTopology(t, sim.LatencyConfig{})
	a := NewNode(topo)

	a.Link(a.Addr(), 7, 8, 7)

	assert.Equal(t, []Addr{7, 8}, a.Neighbors())
	assert.True(t, a.IsNeighbor(8))
}

func TestNode_Liveness_RejectsWrongPayload(t *testing.T) {
	s, topo := newTestTopology(t, sim.LatencyConfig{})
	a := NewNode(topo)
	require.NoError(t, s.Schedule(KindLiveness, a.ID(), 0, false))

	err := s.RunAll()

	assert.ErrorIs(t, err, sim.ErrHandlerFault)
}
