// Tracks per-day inventory snapshots and end-of-run service KPIs.

package sim

// DayRecord is the state of both nodes at the end of one simulated day, after
// every event of that day and before any event of the next.
type DayRecord struct {
	Day            int `json:"day"`
	StoreOnHand    int `json:"store_on_hand"`
	StoreBackorder int `json:"store_backorder"`
	StoreOnOrder   int `json:"store_on_order"`
	DCOnHand       int `json:"dc_on_hand"`
	DCBackorder    int `json:"dc_backorder"`
	DCOnOrder      int `json:"dc_on_order"`
}

// KPISet is the end-of-run aggregate of one replication.
//
// AvgInventory is the exact time-weighted mean of Store on-hand over
// [0, days): the on-hand step function is integrated event by event and
// divided by the horizon. AvgOnHandDC uses the same method for the DC.
type KPISet struct {
	ServiceLevel float64 `json:"service_level"`
	FillRate     float64 `json:"fill_rate"`
	Stockouts    int     `json:"stockouts"`
	AvgInventory float64 `json:"avg_inventory"`

	DemandUnits       int     `json:"demand_units"`
	FulfilledUnits    int     `json:"fulfilled_units"`
	StockoutDays      int     `json:"stockout_days"`
	AvgOnHandStore    float64 `json:"avg_on_hand_store"`
	AvgOnHandDC       float64 `json:"avg_on_hand_dc"`
	AvgBackorderStore float64 `json:"avg_backorder_store"`
	TotalOrdersStore  int     `json:"total_orders_store"`
	TotalOrdersDC     int     `json:"total_orders_dc"`
}

// KPINames lists every KPI in reporting order. Names match the JSON tags.
var KPINames = []string{
	"service_level",
	"fill_rate",
	"stockouts",
	"avg_inventory",
	"demand_units",
	"fulfilled_units",
	"stockout_days",
	"avg_on_hand_store",
	"avg_on_hand_dc",
	"avg_backorder_store",
	"total_orders_store",
	"total_orders_dc",
}

// Values returns the KPIs as floats keyed by KPINames.
func (k KPISet) Values() map[string]float64 {
	return map[string]float64{
		"service_level":       k.ServiceLevel,
		"fill_rate":           k.FillRate,
		"stockouts":           float64(k.Stockouts),
		"avg_inventory":       k.AvgInventory,
		"demand_units":        float64(k.DemandUnits),
		"fulfilled_units":     float64(k.FulfilledUnits),
		"stockout_days":       float64(k.StockoutDays),
		"avg_on_hand_store":   k.AvgOnHandStore,
		"avg_on_hand_dc":      k.AvgOnHandDC,
		"avg_backorder_store": k.AvgBackorderStore,
		"total_orders_store":  float64(k.TotalOrdersStore),
		"total_orders_dc":     float64(k.TotalOrdersDC),
	}
}

// timeWeighted integrates a piecewise-constant integer signal.
type timeWeighted struct {
	area float64
	last float64
}

func (w *timeWeighted) advance(now float64, value int) {
	w.area += float64(value) * (now - w.last)
	w.last = now
}

// KPICollector accumulates demand outcomes and day snapshots for one run.
type KPICollector struct {
	horizon int
	records []DayRecord

	demandUnits    int
	fulfilledUnits int
	stockouts      int
	stockoutDays   int
	daysInStock    int
	stockoutToday  bool

	storeOnHand    timeWeighted
	dcOnHand       timeWeighted
	storeBackorder timeWeighted
}

// NewKPICollector creates a collector for a run of horizon days.
func NewKPICollector(horizon int) *KPICollector {
	return &KPICollector{
		horizon: horizon,
		records: make([]DayRecord, 0, horizon),
	}
}

// Advance integrates the current node state up to now. Called before the
// state changes, so each interval is weighted with the value it actually held.
func (c *KPICollector) Advance(now float64, store, dc *InventoryNode) {
	c.storeOnHand.advance(now, store.OnHand)
	c.dcOnHand.advance(now, dc.OnHand)
	c.storeBackorder.advance(now, store.Backorder)
}

// RecordDemand books qty units of demand; served tells whether they were
// satisfied from on-hand at arrival.
func (c *KPICollector) RecordDemand(qty int, served bool) {
	c.demandUnits += qty
	if served {
		c.fulfilledUnits += qty
		return
	}
	c.stockouts++
	c.stockoutToday = true
}

// RecordDay appends the snapshot for day.
func (c *KPICollector) RecordDay(day int, store, dc *InventoryNode) DayRecord {
	rec := DayRecord{
		Day:            day,
		StoreOnHand:    store.OnHand,
		StoreBackorder: store.Backorder,
		StoreOnOrder:   store.OnOrder,
		DCOnHand:       dc.OnHand,
		DCBackorder:    dc.Backorder,
		DCOnOrder:      dc.OnOrder,
	}
	c.records = append(c.records, rec)
	if rec.StoreBackorder == 0 {
		c.daysInStock++
	}
	if c.stockoutToday {
		c.stockoutDays++
		c.stockoutToday = false
	}
	return rec
}

// Records returns the day snapshots recorded so far.
func (c *KPICollector) Records() []DayRecord {
	return c.records
}

// Finalize computes the KPISet. The collector must have been advanced to the
// horizon.
func (c *KPICollector) Finalize(store, dc *InventoryNode) KPISet {
	horizon := float64(c.horizon)
	k := KPISet{
		ServiceLevel:      float64(c.daysInStock) / horizon,
		FillRate:          1.0,
		Stockouts:         c.stockouts,
		DemandUnits:       c.demandUnits,
		FulfilledUnits:    c.fulfilledUnits,
		StockoutDays:      c.stockoutDays,
		AvgOnHandStore:    c.storeOnHand.area / horizon,
		AvgOnHandDC:       c.dcOnHand.area / horizon,
		AvgBackorderStore: c.storeBackorder.area / horizon,
		TotalOrdersStore:  store.OrdersPlaced,
		TotalOrdersDC:     dc.OrdersPlaced,
	}
	if c.demandUnits > 0 {
		k.FillRate = float64(c.fulfilledUnits) / float64(c.demandUnits)
	}
	k.AvgInventory = k.AvgOnHandStore
	return k
}
