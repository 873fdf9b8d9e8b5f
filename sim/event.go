package sim

import "fmt"

// EventType identifies the kind of a simulation event. The numeric value is
// also the tie-break priority for events sharing a timestamp (lower first).
type EventType int

const (
	// EventTypeEndOfDay closes day d at time d+1, before anything else that
	// happens at that instant, so the snapshot never sees the next day.
	EventTypeEndOfDay EventType = iota
	// EventTypeShipmentArrival books inbound stock before same-instant demand.
	EventTypeShipmentArrival
	// EventTypeDemandArrival applies one customer arrival at the Store.
	EventTypeDemandArrival
)

func (t EventType) String() string {
	switch t {
	case EventTypeEndOfDay:
		return "EndOfDay"
	case EventTypeShipmentArrival:
		return "ShipmentArrival"
	case EventTypeDemandArrival:
		return "DemandArrival"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event defines the interface for all simulation events.
// Timestamps are in simulated days. Events are immutable once created;
// rescheduling means creating a new event.
type Event interface {
	Timestamp() float64
	EventID() uint64
	Type() EventType
	Execute(*Simulator) error
}

// baseEvent provides the fields shared by every event.
type baseEvent struct {
	timestamp float64
	eventID   uint64
	eventType EventType
}

func (e *baseEvent) Timestamp() float64 { return e.timestamp }
func (e *baseEvent) EventID() uint64    { return e.eventID }
func (e *baseEvent) Type() EventType    { return e.eventType }

// DemandArrivalEvent is one customer arrival at the Store.
type DemandArrivalEvent struct {
	baseEvent
	Quantity int
}

// Execute applies the demand and schedules the next arrival.
func (e *DemandArrivalEvent) Execute(sim *Simulator) error {
	return sim.handleDemandArrival(e)
}

// ShipmentArrivalEvent delivers a dispatched shipment to its destination.
type ShipmentArrivalEvent struct {
	baseEvent
	Shipment Shipment
}

// Execute books the shipment at the receiving node.
func (e *ShipmentArrivalEvent) Execute(sim *Simulator) error {
	return sim.handleShipmentArrival(e)
}

// EndOfDayEvent snapshots state at the boundary between Day and Day+1.
type EndOfDayEvent struct {
	baseEvent
	Day int
}

// Execute records the DayRecord and schedules the next boundary.
func (e *EndOfDayEvent) Execute(sim *Simulator) error {
	return sim.handleEndOfDay(e)
}
