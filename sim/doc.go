// Package sim provides the core discrete-event simulation engine for netsim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go: Event, Kind and the (time, sequence) ordered queue
//   - simulator.go: the Simulator run loop, entity registry and reset
//   - entity.go: Entity, the per-entity dispatch table embedded by participants
//   - timeout.go: one-shot and periodic timeouts
//
// # Architecture
//
// The sim package owns virtual time; everything else is built on top of it in
// sub-packages:
//   - sim/network/: Topology, Node and latency models (simulated packets, liveness)
//   - sim/deferred/: promise-style callback/errback chains
//   - sim/rpc/: request/response RPC between nodes resolved through Deferreds
//   - sim/trace/: DataSet trace writers and the trace record reader
//   - sim/distributed/: tick barrier for multi-participant runs
//   - sim/scenario/: bundled example protocols used by the CLI
//
// There are no package-level simulators: every participant receives the
// *Simulator (or a Topology built on it) explicitly, so independent runs can
// coexist in one process.
//
// # Determinism
//
// Same-time events run in the order they were scheduled, and all randomness is
// drawn from a PartitionedRNG derived from the SimulationKey. A fixed key and
// fixed logic reproduce the same dispatch sequence.
package sim
