// sim/simulator.go
package sim

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/stochastix-twin/twin-sim/sim/trace"
)

// Result is the outcome of one replication.
type Result struct {
	Seed       int64       `json:"seed"`
	KPIs       KPISet      `json:"kpis"`
	Timeseries []DayRecord `json:"timeseries"`
	// Trace holds every order and shipment of the run.
	Trace *trace.OrderTrace `json:"-"`
}

// Simulator is the core object that holds simulation time, both inventory
// nodes and the event loop of one replication. It is single-threaded: events
// are dispatched strictly one after another in queue order.
type Simulator struct {
	Clock   float64 // simulated days
	Horizon int     // days
	Config  SimulationConfig

	// EventQueue has all pending events: demand arrivals, shipment arrivals
	// and end-of-day ticks.
	EventQueue *EventQueue
	Store      *InventoryNode
	DC         *InventoryNode
	RNG        *PartitionedRNG
	KPIs       *KPICollector
	Trace      *trace.OrderTrace

	demand     *DemandProcess
	leadTime   LeadTimeSampler
	disruption DisruptionSampler
	// Store orders waiting for DC stock, FIFO.
	dcBacklog []Order

	nextEventID uint64 // per-simulator counter for deterministic tie-breaking
	nextOrderID int
	started     bool
	finished    bool

	log *logrus.Entry
}

// NewSimulator validates cfg and builds a fresh replication seeded by key.
func NewSimulator(cfg SimulationConfig, key SimulationKey) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := NewPartitionedRNG(key)
	return &Simulator{
		Clock:      0,
		Horizon:    cfg.Days,
		Config:     cfg,
		EventQueue: NewEventQueue(),
		Store:      NewInventoryNode(NodeStore, cfg.InitialOnHandStore, cfg.StorePolicy()),
		DC:         NewInventoryNode(NodeDC, cfg.InitialOnHandDC, cfg.DCPolicy()),
		RNG:        rng,
		KPIs:       NewKPICollector(cfg.Days),
		Trace:      trace.NewOrderTrace(),
		demand:     NewDemandProcess(cfg, rng.ForSubsystem(SubsystemDemand)),
		leadTime:   NewLeadTimeSampler(cfg.LeadTimeMeanDays, cfg.LeadTimeStdDays),
		disruption: DisruptionSampler{
			Probability: cfg.DisruptionProbabilityPerShipment,
			DelayDays:   cfg.DisruptionDelayDays,
		},
		log: logrus.WithField("seed", int64(key)),
	}, nil
}

// WithFields attaches extra log fields to every message of this replication.
func (sim *Simulator) WithFields(fields logrus.Fields) *Simulator {
	sim.log = sim.log.WithFields(fields)
	return sim
}

// Schedule pushes an event into the EventQueue unless it falls outside the
// horizon. Only the final EndOfDay tick may sit exactly on the horizon.
// Returns whether the event was admitted.
func (sim *Simulator) Schedule(ev Event) bool {
	horizon := float64(sim.Horizon)
	if ev.Timestamp() > horizon || (ev.Timestamp() == horizon && ev.Type() != EventTypeEndOfDay) {
		sim.log.Tracef("[t=%010.4f] %s #%d past horizon, not scheduled", ev.Timestamp(), ev.Type(), ev.EventID())
		return false
	}
	sim.EventQueue.Schedule(ev)
	return true
}

func (sim *Simulator) newBaseEvent(timestamp float64, eventType EventType) baseEvent {
	sim.nextEventID++
	return baseEvent{timestamp: timestamp, eventID: sim.nextEventID, eventType: eventType}
}

// Run executes the replication until the last day is closed.
// The context is polled at every day boundary; a cancelled context stops the
// run with ErrCancelled and no result.
func (sim *Simulator) Run(ctx context.Context) (*Result, error) {
	if sim.started {
		return nil, errors.New("simulator has already been run")
	}
	sim.started = true
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	sim.start()
	for !sim.finished {
		ev := sim.EventQueue.PopNext()
		if ev == nil {
			return nil, faultf(sim.Clock, "", "event queue drained before day %d was closed", len(sim.KPIs.Records()))
		}
		if ev.Timestamp() < sim.Clock {
			return nil, faultf(sim.Clock, "", "clock went backwards: %s #%d at t=%.6f", ev.Type(), ev.EventID(), ev.Timestamp())
		}
		sim.KPIs.Advance(ev.Timestamp(), sim.Store, sim.DC)
		sim.Clock = ev.Timestamp()
		sim.log.Tracef("[t=%010.4f] Executing %s #%d", sim.Clock, ev.Type(), ev.EventID())

		if err := ev.Execute(sim); err != nil {
			return nil, err
		}
		if err := sim.checkInvariants(); err != nil {
			return nil, err
		}
		if ev.Type() == EventTypeEndOfDay && ctx.Err() != nil {
			sim.log.Infof("cancelled after day %d", ev.(*EndOfDayEvent).Day)
			return nil, ErrCancelled
		}
	}

	kpis := sim.KPIs.Finalize(sim.Store, sim.DC)
	sim.log.Debugf("run complete: service_level=%.4f fill_rate=%.4f stockouts=%d avg_inventory=%.2f",
		kpis.ServiceLevel, kpis.FillRate, kpis.Stockouts, kpis.AvgInventory)
	return &Result{
		Seed:       int64(sim.RNG.Key()),
		KPIs:       kpis,
		Timeseries: sim.KPIs.Records(),
		Trace:      sim.Trace,
	}, nil
}

// start places the initial orders due at t=0, the first demand arrival and
// the first day boundary.
func (sim *Simulator) start() {
	sim.evaluateReorder(sim.Store)
	sim.evaluateReorder(sim.DC)
	sim.scheduleNextDemand(0)
	sim.scheduleEndOfDay(0)
}

func (sim *Simulator) scheduleNextDemand(from float64) {
	at, ok := sim.demand.Next(from)
	if !ok {
		return
	}
	sim.Schedule(&DemandArrivalEvent{
		baseEvent: sim.newBaseEvent(at, EventTypeDemandArrival),
		Quantity:  1,
	})
}

func (sim *Simulator) scheduleEndOfDay(day int) {
	sim.Schedule(&EndOfDayEvent{
		baseEvent: sim.newBaseEvent(float64(day+1), EventTypeEndOfDay),
		Day:       day,
	})
}

func (sim *Simulator) handleDemandArrival(e *DemandArrivalEvent) error {
	served := sim.Store.fill(e.Quantity)
	sim.KPIs.RecordDemand(e.Quantity, served)
	if !served {
		sim.log.Tracef("[t=%010.4f] stockout, store backorder now %d", sim.Clock, sim.Store.Backorder)
	}
	sim.evaluateReorder(sim.Store)
	sim.scheduleNextDemand(sim.Clock)
	return nil
}

func (sim *Simulator) handleEndOfDay(e *EndOfDayEvent) error {
	rec := sim.KPIs.RecordDay(e.Day, sim.Store, sim.DC)
	sim.log.Tracef("day %d closed: store on_hand=%d backorder=%d, dc on_hand=%d",
		rec.Day, rec.StoreOnHand, rec.StoreBackorder, rec.DCOnHand)
	if e.Day+1 >= sim.Horizon {
		sim.finished = true
		return nil
	}
	sim.scheduleEndOfDay(e.Day + 1)
	return nil
}

func (sim *Simulator) node(id NodeID) *InventoryNode {
	switch id {
	case NodeStore:
		return sim.Store
	case NodeDC:
		return sim.DC
	}
	return nil
}

// checkInvariants verifies both nodes and that the DC backorder equals the
// units waiting in its backlog.
func (sim *Simulator) checkInvariants() error {
	if err := sim.Store.check(sim.Clock); err != nil {
		return err
	}
	if err := sim.DC.check(sim.Clock); err != nil {
		return err
	}
	queued := 0
	for _, o := range sim.dcBacklog {
		queued += o.Quantity
	}
	if queued != sim.DC.Backorder {
		return faultf(sim.Clock, NodeDC, "backorder %d does not match %d queued units", sim.DC.Backorder, queued)
	}
	return nil
}

func orderRecord(order Order, positionBefore int, node *InventoryNode) trace.OrderRecord {
	return trace.OrderRecord{
		OrderID:        order.ID,
		Node:           string(order.Origin),
		Clock:          order.IssuedAt,
		Quantity:       order.Quantity,
		PositionBefore: positionBefore,
		PositionAfter:  node.Position(),
		ReorderPoint:   node.Policy.ReorderPoint,
		OrderUpTo:      node.Policy.OrderUpTo,
	}
}

func shipmentRecord(s Shipment, scheduled bool) trace.ShipmentRecord {
	return trace.ShipmentRecord{
		OrderID:         s.Order.ID,
		Node:            string(s.Order.Origin),
		Quantity:        s.Order.Quantity,
		IssuedAt:        s.Order.IssuedAt,
		DispatchedAt:    s.DispatchedAt,
		LeadTime:        s.LeadTime,
		DisruptionDelay: s.DisruptionDelay,
		ArrivesAt:       s.ArrivesAt,
		Disrupted:       s.Disrupted(),
		Scheduled:       scheduled,
	}
}
