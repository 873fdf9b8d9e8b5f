package sim

// Policy is an (s, S) reorder-point / order-up-to rule: when the inventory
// position falls to ReorderPoint or below, order enough to bring it back to
// OrderUpTo.
type Policy struct {
	ReorderPoint int // s
	OrderUpTo    int // S
}

// OrderQuantity returns the replenishment quantity for the given inventory
// position, or 0 when no order is due.
func (p Policy) OrderQuantity(position int) int {
	if position > p.ReorderPoint {
		return 0
	}
	return p.OrderUpTo - position
}

func (p Policy) validate(sField, bigSField string) error {
	if p.ReorderPoint < 0 {
		return configErrorf(sField, "must be >= 0, got %d", p.ReorderPoint)
	}
	if p.OrderUpTo <= p.ReorderPoint {
		return configErrorf(bigSField, "must be greater than %s (%d), got %d", sField, p.ReorderPoint, p.OrderUpTo)
	}
	return nil
}
