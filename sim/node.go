package sim

// NodeID identifies a stocking location.
type NodeID string

const (
	NodeStore NodeID = "store"
	NodeDC    NodeID = "dc"
)

// InventoryNode holds the mutable per-run stock state of one location.
//
// Position = OnHand - Backorder + OnOrder. Besides the three visible counters
// the node keeps a ledger of everything it has ordered and everything that was
// demanded from it; check() verifies the position never drifts from
// initial + ordered - demanded.
type InventoryNode struct {
	ID        NodeID
	Policy    Policy
	OnHand    int
	Backorder int
	OnOrder   int

	// OrdersPlaced counts replenishment orders issued by this node.
	OrdersPlaced int

	initial  int
	ordered  int
	demanded int
}

// NewInventoryNode creates a node with initial on-hand stock and nothing in
// transit.
func NewInventoryNode(id NodeID, initialOnHand int, policy Policy) *InventoryNode {
	return &InventoryNode{
		ID:      id,
		Policy:  policy,
		OnHand:  initialOnHand,
		initial: initialOnHand,
	}
}

// Position returns the inventory position used by reorder decisions.
func (n *InventoryNode) Position() int {
	return n.OnHand - n.Backorder + n.OnOrder
}

// fill serves qty units from on-hand when the whole quantity is available and
// nothing is already waiting ahead of it. Otherwise the quantity is added to
// the backorder. Returns true when served immediately.
func (n *InventoryNode) fill(qty int) bool {
	n.demanded += qty
	if n.Backorder == 0 && n.OnHand >= qty {
		n.OnHand -= qty
		return true
	}
	n.Backorder += qty
	return false
}

// release ships qty units of outstanding backorder out of on-hand stock.
func (n *InventoryNode) release(qty int) {
	n.OnHand -= qty
	n.Backorder -= qty
}

// receive books the arrival of an inbound shipment.
func (n *InventoryNode) receive(qty int) {
	n.OnHand += qty
	n.OnOrder -= qty
}

// reorder applies the (s, S) policy. When an order is due the quantity is
// added to OnOrder before returning, so evaluating again at the same instant
// yields 0.
func (n *InventoryNode) reorder() int {
	qty := n.Policy.OrderQuantity(n.Position())
	if qty <= 0 {
		return 0
	}
	n.OnOrder += qty
	n.ordered += qty
	n.OrdersPlaced++
	return qty
}

// check verifies the node invariants at clock.
func (n *InventoryNode) check(clock float64) error {
	switch {
	case n.OnHand < 0:
		return faultf(clock, n.ID, "negative on_hand %d", n.OnHand)
	case n.Backorder < 0:
		return faultf(clock, n.ID, "negative backorder %d", n.Backorder)
	case n.OnOrder < 0:
		return faultf(clock, n.ID, "negative on_order %d", n.OnOrder)
	}
	if want := n.initial + n.ordered - n.demanded; n.Position() != want {
		return faultf(clock, n.ID, "inventory position %d does not match ledger %d", n.Position(), want)
	}
	return nil
}
