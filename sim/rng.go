package sim

import (
	"hash/fnv"
	"math/rand/v2"
)

// SimulationKey is the seed of a run. Equal keys and equal wiring replay the
// same dispatch sequence, latency draws included.
type SimulationKey int64

// NewSimulationKey wraps seed.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// Names of the random streams used inside netsim.
const (
	SubsystemNetwork  = "network"  // packet and RPC latency
	SubsystemFaults   = "faults"   // fault-injection aspects
	SubsystemWorkload = "workload" // scenario graphs and payloads
)

// PartitionedRNG hands out one independent stream per subsystem name, so a
// new draw in one stream leaves every other stream's sequence unchanged.
// Stream name n is PCG(key, fnv1a64(n)). Not safe for concurrent use.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG returns an empty partition for key.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream for name, creating it on first use. Repeated
// calls return the same *rand.Rand.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	r, ok := p.streams[name]
	if !ok {
		r = rand.New(rand.NewPCG(uint64(p.key), streamSeed(name)))
		p.streams[name] = r
	}
	return r
}

// Key returns the key the streams derive from.
func (p *PartitionedRNG) Key() SimulationKey { return p.key }

func streamSeed(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}
