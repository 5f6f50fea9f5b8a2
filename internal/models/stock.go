package models

import "fmt"

const (
	AdjustmentAdd    = "ADD"
	AdjustmentRemove = "REMOVE"
	AdjustmentSet    = "SET"
)

const (
	SnapshotOpening = "OPENING"
	SnapshotClosing = "CLOSING"
)

func ValidAdjustmentType(t string) bool {
	return t == AdjustmentAdd || t == AdjustmentRemove || t == AdjustmentSet
}

func ValidSnapshotType(t string) bool {
	return t == SnapshotOpening || t == SnapshotClosing
}

// NextStock computes the stock value an adjustment produces. REMOVE clamps
// at zero; SET treats quantity as the absolute target rather than a delta.
func NextStock(previous, quantity int, adjustmentType string) (int, error) {
	if quantity < 0 {
		return 0, fmt.Errorf("quantity must not be negative, got %d", quantity)
	}
	switch adjustmentType {
	case AdjustmentAdd:
		return previous + quantity, nil
	case AdjustmentRemove:
		next := previous - quantity
		if next < 0 {
			next = 0
		}
		return next, nil
	case AdjustmentSet:
		return quantity, nil
	default:
		return 0, fmt.Errorf("unknown adjustment type %q", adjustmentType)
	}
}
