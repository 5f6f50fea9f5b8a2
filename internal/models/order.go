package models

import "math"

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusCancelled OrderStatus = "CANCELLED"
)

func ValidStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// transitions encodes the linear pickup workflow. CANCELLED is reachable
// only while the order is still open (PENDING or PREPARING); COMPLETED and
// CANCELLED are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(s OrderStatus) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ComputeTotals derives order money figures from the frozen item prices.
// Amounts are rounded to cents so stored totals match what the customer
// sees on the confirmation.
func ComputeTotals(items []OrderItem, taxRate float64) (subtotal, tax, total float64) {
	for _, item := range items {
		subtotal += item.Price * float64(item.Quantity)
	}
	subtotal = roundCents(subtotal)
	tax = roundCents(subtotal * taxRate)
	total = roundCents(subtotal + tax)
	return subtotal, tax, total
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
