package engine

import (
	"fmt"
	"time"

	"github.com/tablr/orderwatch/internal/domain"
)

// recordForTransition builds the feed record for a newly classified
// transition. The ID is deterministic per (type, order, cycle time), so
// replaying a cycle against unchanged input can never mint a second record
// for the same occurrence.
func (e *Engine) recordForTransition(typ domain.NotificationType, snap domain.OrderSnapshot, now time.Time) domain.NotificationRecord {
	title, message := renderTemplate(typ, snap)
	return domain.NotificationRecord{
		ID:        fmt.Sprintf("%s:%s:%d", typ, snap.OrderID, now.UnixMilli()),
		Type:      typ,
		Title:     title,
		Message:   message,
		OrderID:   snap.OrderID,
		Amount:    snap.TotalAmount,
		Address:   snap.Address,
		Timestamp: now,
		Read:      false,
		Icon:      iconFor(typ),
		Color:     colorFor(typ),
	}
}

// renderTemplate fills the per-type human-readable title and message.
// Missing amount/address have already been defaulted to 0/"" by the fetch
// layer, so templates never see absent fields.
func renderTemplate(typ domain.NotificationType, snap domain.OrderSnapshot) (title, message string) {
	switch typ {
	case domain.NotifyNewOrder:
		return "New order received",
			fmt.Sprintf("Order #%s: $%.2f, %s", snap.OrderID, snap.TotalAmount, snap.Address)
	case domain.NotifyNewAssignment:
		return "New delivery assignment",
			fmt.Sprintf("Order #%s, deliver to %s", snap.OrderID, snap.Address)
	case domain.NotifyCancelled:
		return "Order cancelled",
			fmt.Sprintf("Order #%s has been cancelled", snap.OrderID)
	case domain.NotifyDelivered:
		return "Order delivered",
			fmt.Sprintf("Order #%s was delivered", snap.OrderID)
	default:
		return "Order updated",
			fmt.Sprintf("Order #%s is now %s", snap.OrderID, snap.Status)
	}
}

func iconFor(typ domain.NotificationType) string {
	switch typ {
	case domain.NotifyNewOrder:
		return "receipt"
	case domain.NotifyNewAssignment:
		return "bicycle"
	case domain.NotifyCancelled:
		return "close-circle"
	case domain.NotifyDelivered:
		return "checkmark-circle"
	default:
		return "sync"
	}
}

func colorFor(typ domain.NotificationType) string {
	switch typ {
	case domain.NotifyNewOrder:
		return "#2e7d32"
	case domain.NotifyNewAssignment:
		return "#1565c0"
	case domain.NotifyCancelled:
		return "#c62828"
	case domain.NotifyDelivered:
		return "#2e7d32"
	default:
		return "#616161"
	}
}
