package trace

// OrderTrace collects replenishment records during one replication.
// Records are appended in dispatch order and never revised.
type OrderTrace struct {
	Orders    []OrderRecord
	Shipments []ShipmentRecord
}

// NewOrderTrace creates an OrderTrace ready for recording.
func NewOrderTrace() *OrderTrace {
	return &OrderTrace{
		Orders:    make([]OrderRecord, 0),
		Shipments: make([]ShipmentRecord, 0),
	}
}

// RecordOrder appends an order record.
func (ot *OrderTrace) RecordOrder(record OrderRecord) {
	ot.Orders = append(ot.Orders, record)
}

// RecordShipment appends a shipment record.
func (ot *OrderTrace) RecordShipment(record ShipmentRecord) {
	ot.Shipments = append(ot.Shipments, record)
}

// OrdersFor returns the order records issued by node, in issue order.
func (ot *OrderTrace) OrdersFor(node string) []OrderRecord {
	var out []OrderRecord
	for _, o := range ot.Orders {
		if o.Node == node {
			out = append(out, o)
		}
	}
	return out
}
