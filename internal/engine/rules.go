package engine

import (
	"time"

	"github.com/tablr/orderwatch/internal/domain"
)

// Rules parameterizes the generic engine for one client variant. The admin
// console and the courier client run the same diff algorithm; everything that
// differs between them lives here.
type Rules struct {
	Role domain.Role

	// TrackAssignments switches the new-condition check to the courier form:
	// an order not yet in the assignment set whose status is non-terminal is a
	// new assignment. When false the admin form applies: an order with no
	// ledger entry created after the last-check marker is a new order.
	TrackAssignments bool

	// DeliveredRequiresHandoff restricts the delivered classification to
	// transitions out of out_for_delivery (courier). Admins are notified of a
	// delivery from any prior status.
	DeliveredRequiresHandoff bool

	// AttentionTypes selects which classified transitions bump the attention
	// badge (new orders for admin; new assignments and cancellations for
	// courier).
	AttentionTypes map[domain.NotificationType]bool

	// TargetScreen is the deep-link target carried in push payloads.
	TargetScreen string

	LedgerCap int
	FeedCap   int

	PollInterval      time.Duration
	HeartbeatInterval time.Duration // zero disables the heartbeat ticker
}

// AdminRules returns the admin-console configuration of the engine.
func AdminRules(pollInterval time.Duration, ledgerCap, feedCap int) Rules {
	return Rules{
		Role:         domain.RoleAdmin,
		TargetScreen: "admin/orders",
		AttentionTypes: map[domain.NotificationType]bool{
			domain.NotifyNewOrder: true,
		},
		LedgerCap:    ledgerCap,
		FeedCap:      feedCap,
		PollInterval: pollInterval,
	}
}

// CourierRules returns the courier-client configuration of the engine.
func CourierRules(pollInterval, heartbeatInterval time.Duration, ledgerCap, feedCap int) Rules {
	return Rules{
		Role:                     domain.RoleCourier,
		TrackAssignments:         true,
		DeliveredRequiresHandoff: true,
		TargetScreen:             "courier/deliveries",
		AttentionTypes: map[domain.NotificationType]bool{
			domain.NotifyNewAssignment: true,
			domain.NotifyCancelled:     true,
		},
		LedgerCap:         ledgerCap,
		FeedCap:           feedCap,
		PollInterval:      pollInterval,
		HeartbeatInterval: heartbeatInterval,
	}
}
