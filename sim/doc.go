// Package sim provides the discrete-event simulation engine for a two-echelon
// (Store, DC) inventory system under stochastic demand and supply.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - node.go: InventoryNode stock counters and the (s, S) reorder rule
//   - event.go: Event types that drive the simulation (DemandArrival, ShipmentArrival, EndOfDay)
//   - simulator.go: The event loop, day boundaries and invariant checks
//
// # Architecture
//
// One Simulator runs one replication and is single-threaded. Randomness is
// split by subsystem through PartitionedRNG so demand, lead-time and
// disruption draws never shift each other. Replication fan-out and job
// tracking live in sub-packages:
//   - sim/montecarlo/: seeds, worker pool and KPI aggregation
//   - sim/jobs/: asynchronous job lifecycle and progress
//   - sim/trace/: order and shipment trace recording
//
// Events at the same instant run EndOfDay first, then ShipmentArrival, then
// DemandArrival; remaining ties break on the event ID.
package sim
