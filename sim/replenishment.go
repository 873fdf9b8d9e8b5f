package sim

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// MinLeadTimeDays is the floor applied to lead-time draws so that a shipment
// always arrives strictly after it was dispatched.
const MinLeadTimeDays = 1e-9

// Order is one replenishment request, immutable once issued.
type Order struct {
	ID       int
	Origin   NodeID
	Quantity int
	IssuedAt float64
}

// Shipment is an order on its way to Order.Origin. Store orders are shipped
// by the DC, DC orders by the upstream supplier.
type Shipment struct {
	Order           Order
	DispatchedAt    float64
	LeadTime        float64
	DisruptionDelay float64
	ArrivesAt       float64
}

// Disrupted reports whether the shipment carries a disruption delay.
func (s Shipment) Disrupted() bool {
	return s.DisruptionDelay > 0
}

// LeadTimeSampler draws lognormal lead times parameterised by the mean and
// standard deviation of the lead time itself (not of its logarithm).
type LeadTimeSampler struct {
	mean  float64
	mu    float64 // mean of ln(X)
	sigma float64 // std dev of ln(X)
}

// NewLeadTimeSampler converts mean/std in days to the underlying normal
// parameters: sigma² = ln(1 + std²/mean²), mu = ln(mean) - sigma²/2.
func NewLeadTimeSampler(meanDays, stdDays float64) LeadTimeSampler {
	if stdDays <= 0 {
		return LeadTimeSampler{mean: meanDays, mu: math.Log(meanDays)}
	}
	sigma2 := math.Log1p(stdDays * stdDays / (meanDays * meanDays))
	return LeadTimeSampler{
		mean:  meanDays,
		mu:    math.Log(meanDays) - 0.5*sigma2,
		sigma: math.Sqrt(sigma2),
	}
}

// Params returns the (mu, sigma) of the underlying normal distribution.
func (s LeadTimeSampler) Params() (mu, sigma float64) {
	return s.mu, s.sigma
}

// Sample returns a lead time in days, never below MinLeadTimeDays.
// A zero standard deviation returns the mean without consuming randomness.
func (s LeadTimeSampler) Sample(rng *rand.Rand) float64 {
	val := s.mean
	if s.sigma > 0 {
		val = math.Exp(s.mu + s.sigma*rng.NormFloat64())
	}
	if math.IsNaN(val) || math.IsInf(val, 0) || val < MinLeadTimeDays {
		logrus.Warnf("lead time draw %v clamped to %v days", val, MinLeadTimeDays)
		return MinLeadTimeDays
	}
	return val
}

// DisruptionSampler adds a fixed delay to a shipment with a fixed probability.
type DisruptionSampler struct {
	Probability float64
	DelayDays   float64
}

// Sample returns the extra delay for one shipment: DelayDays with probability
// Probability, else 0. Nothing is drawn when either parameter is zero.
func (d DisruptionSampler) Sample(rng *rand.Rand) float64 {
	if d.Probability <= 0 || d.DelayDays <= 0 {
		return 0
	}
	if rng.Float64() < d.Probability {
		return d.DelayDays
	}
	return 0
}

// evaluateReorder runs the reorder check on node and, when an order is due, routes
// it upstream: Store orders go to the DC, DC orders to the supplier.
func (sim *Simulator) evaluateReorder(node *InventoryNode) {
	before := node.Position()
	qty := node.reorder()
	if qty == 0 {
		return
	}
	sim.nextOrderID++
	order := Order{
		ID:       sim.nextOrderID,
		Origin:   node.ID,
		Quantity: qty,
		IssuedAt: sim.Clock,
	}
	sim.Trace.RecordOrder(orderRecord(order, before, node))
	sim.log.Debugf("order #%d: %s orders %d units at t=%.4f (position %d -> %d)",
		order.ID, node.ID, qty, sim.Clock, before, node.Position())

	if node.ID == NodeDC {
		// Upstream supplier has unlimited capacity.
		sim.dispatch(order)
		return
	}
	sim.requestFromDC(order)
}

// requestFromDC treats a Store order as demand on the DC. The order ships
// whole or waits whole in the DC backlog; there are no partial shipments.
func (sim *Simulator) requestFromDC(order Order) {
	if sim.DC.fill(order.Quantity) {
		sim.dispatch(order)
	} else {
		sim.dcBacklog = append(sim.dcBacklog, order)
		sim.log.Debugf("order #%d backordered at dc (on_hand %d, backlog %d units)",
			order.ID, sim.DC.OnHand, sim.DC.Backorder)
	}
	sim.evaluateReorder(sim.DC)
}

// dispatch samples the transit time for order and schedules its arrival.
// Arrivals past the horizon are never admitted; their quantity stays on order.
func (sim *Simulator) dispatch(order Order) {
	shipment := Shipment{
		Order:           order,
		DispatchedAt:    sim.Clock,
		LeadTime:        sim.leadTime.Sample(sim.RNG.ForSubsystem(SubsystemLeadTime)),
		DisruptionDelay: sim.disruption.Sample(sim.RNG.ForSubsystem(SubsystemDisruption)),
	}
	shipment.ArrivesAt = shipment.DispatchedAt + shipment.LeadTime + shipment.DisruptionDelay

	scheduled := sim.Schedule(&ShipmentArrivalEvent{
		baseEvent: sim.newBaseEvent(shipment.ArrivesAt, EventTypeShipmentArrival),
		Shipment:  shipment,
	})
	sim.Trace.RecordShipment(shipmentRecord(shipment, scheduled))
}

func (sim *Simulator) handleShipmentArrival(e *ShipmentArrivalEvent) error {
	node := sim.node(e.Shipment.Order.Origin)
	if node == nil {
		return faultf(sim.Clock, e.Shipment.Order.Origin, "shipment for unknown node")
	}
	node.receive(e.Shipment.Order.Quantity)
	sim.log.Debugf("order #%d: %d units arrive at %s at t=%.4f",
		e.Shipment.Order.ID, e.Shipment.Order.Quantity, node.ID, sim.Clock)

	if node.ID == NodeStore {
		node.release(min(node.Backorder, node.OnHand))
	} else {
		sim.drainDCBacklog()
	}
	sim.evaluateReorder(node)
	return nil
}

// drainDCBacklog ships queued Store orders in FIFO order while DC stock
// covers the order at the head of the queue.
func (sim *Simulator) drainDCBacklog() {
	for len(sim.dcBacklog) > 0 && sim.dcBacklog[0].Quantity <= sim.DC.OnHand {
		order := sim.dcBacklog[0]
		sim.dcBacklog = sim.dcBacklog[1:]
		sim.DC.release(order.Quantity)
		sim.dispatch(order)
	}
}
