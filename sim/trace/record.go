// Package trace provides order and shipment recording for replenishment analysis.
// It has no dependency on sim and stores plain data types only.
package trace

// OrderRecord captures a single reorder decision.
type OrderRecord struct {
	OrderID        int     `json:"order_id"`
	Node           string  `json:"node"`
	Clock          float64 `json:"clock"`
	Quantity       int     `json:"quantity"`
	PositionBefore int     `json:"position_before"`
	PositionAfter  int     `json:"position_after"`
	ReorderPoint   int     `json:"reorder_point"`
	OrderUpTo      int     `json:"order_up_to"`
}

// ShipmentRecord captures one dispatched shipment. Scheduled is false when
// the arrival falls past the horizon and was never admitted to the queue.
type ShipmentRecord struct {
	OrderID         int     `json:"order_id"`
	Node            string  `json:"node"` // receiving node
	Quantity        int     `json:"quantity"`
	IssuedAt        float64 `json:"issued_at"`
	DispatchedAt    float64 `json:"dispatched_at"`
	LeadTime        float64 `json:"lead_time"`
	DisruptionDelay float64 `json:"disruption_delay"`
	ArrivesAt       float64 `json:"arrives_at"`
	Disrupted       bool    `json:"disrupted"`
	Scheduled       bool    `json:"scheduled"`
}
