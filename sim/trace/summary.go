package trace

// TraceSummary aggregates statistics from an OrderTrace.
type TraceSummary struct {
	TotalOrders        int            `json:"total_orders"`
	OrdersByNode       map[string]int `json:"orders_by_node"`
	UnitsByNode        map[string]int `json:"units_by_node"`
	Shipments          int            `json:"shipments"`
	DisruptedShipments int            `json:"disrupted_shipments"`
	BeyondHorizon      int            `json:"beyond_horizon"`
	MeanLeadTime       float64        `json:"mean_lead_time"`
	MaxLeadTime        float64        `json:"max_lead_time"`
}

// Summarize computes aggregate statistics from an OrderTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(ot *OrderTrace) *TraceSummary {
	summary := &TraceSummary{
		OrdersByNode: make(map[string]int),
		UnitsByNode:  make(map[string]int),
	}
	if ot == nil {
		return summary
	}

	summary.TotalOrders = len(ot.Orders)
	for _, o := range ot.Orders {
		summary.OrdersByNode[o.Node]++
		summary.UnitsByNode[o.Node] += o.Quantity
	}

	if len(ot.Shipments) > 0 {
		total := 0.0
		for _, s := range ot.Shipments {
			total += s.LeadTime
			if s.LeadTime > summary.MaxLeadTime {
				summary.MaxLeadTime = s.LeadTime
			}
			if s.Disrupted {
				summary.DisruptedShipments++
			}
			if !s.Scheduled {
				summary.BeyondHorizon++
			}
		}
		summary.Shipments = len(ot.Shipments)
		summary.MeanLeadTime = total / float64(len(ot.Shipments))
	}

	return summary
}
