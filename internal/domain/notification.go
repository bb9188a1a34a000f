package domain

import "time"

// NotificationType classifies the order transition a feed record represents.
type NotificationType string

const (
	NotifyNewOrder      NotificationType = "new_order"
	NotifyNewAssignment NotificationType = "new_assignment"
	NotifyStatusChange  NotificationType = "status_change"
	NotifyCancelled     NotificationType = "cancelled"
	NotifyDelivered     NotificationType = "delivered"
)

// NotificationRecord is one entry of the bounded notification feed. Records
// are ordered newest-first; the feed never grows past its cap. A record's ID
// is deterministic per (type, order, cycle) so re-processing an unchanged
// snapshot can never duplicate it.
type NotificationRecord struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	OrderID   string           `json:"orderId"`
	Amount    float64          `json:"amount"`
	Address   string           `json:"address"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	Icon      string           `json:"icon"`
	Color     string           `json:"color"`
}

// PushData is the payload attached to a device push so the client app can
// deep-link to the right screen on tap.
type PushData struct {
	Type         NotificationType `json:"type"`
	OrderID      string           `json:"orderId"`
	TargetScreen string           `json:"targetScreen"`
}

// PushNotification is one device push handed to the dispatch layer. Delivery
// is assumed reliable once handed off.
type PushNotification struct {
	Title string
	Body  string
	Data  PushData
}

// BadgeCounts is the derived badge state published after every cycle and
// after every read/clear operation.
type BadgeCounts struct {
	Role      Role `json:"role"`
	Unread    int  `json:"unread"`
	Attention int  `json:"attention"`
}

// BadgeChannel returns the pub/sub channel badge updates for the role are
// published on.
func BadgeChannel(role Role) string {
	return "badge:" + string(role)
}

// ArchivedNotification is one row of the append-only dispatch history kept in
// Postgres. Unlike the feed, archive rows are never rewritten.
type ArchivedNotification struct {
	ID           int64
	Role         Role
	CycleID      string
	RecordID     string
	Type         NotificationType
	Title        string
	Message      string
	OrderID      string
	Amount       float64
	Address      string
	DispatchedAt time.Time
}
