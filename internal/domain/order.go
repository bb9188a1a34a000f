package domain

import "time"

// OrderStatus tracks the customer order lifecycle as reported by the Order API.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
)

// Terminal reports whether the status ends the order lifecycle. Once a
// terminal status has been notified, later cycles may only rewrite the
// existing feed record; they never emit again.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// OrderSnapshot is one order as observed in a single fetch. Snapshots are
// transient: the engine compares them against the ledger and then discards
// them, it never persists them.
type OrderSnapshot struct {
	OrderID         string
	Status          OrderStatus
	TotalAmount     float64
	Address         string
	CreatedAt       time.Time
	StatusUpdatedAt time.Time
}
