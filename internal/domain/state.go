package domain

import (
	"context"
	"io"
	"time"
)

// Role selects which variant's rules the engine applies and namespaces all
// persisted state. Admin and courier sessions never share keys.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCourier Role = "courier"
)

// EngineState is everything the engine persists between cycles: the ledger of
// last-seen statuses, the courier assignment set, the bounded feed, the
// last-check marker and the attention counter.
type EngineState struct {
	Ledger    map[string]OrderStatus `json:"ledger"`
	Assigned  map[string]bool        `json:"assigned,omitempty"`
	Feed      []NotificationRecord   `json:"feed"`
	LastCheck time.Time              `json:"lastCheck"`
	Attention int                    `json:"attention"`
}

// NewEngineState returns an empty state with the last-check marker set to
// now. Starting the marker at now (never in the past) keeps a fresh session
// from flooding the feed with pre-existing history.
func NewEngineState(now time.Time) EngineState {
	return EngineState{
		Ledger:    map[string]OrderStatus{},
		Assigned:  map[string]bool{},
		Feed:      []NotificationRecord{},
		LastCheck: now,
	}
}

// StateStore persists engine state per role. Load returns ErrNotFound when
// nothing has been persisted yet for the role.
type StateStore interface {
	Load(ctx context.Context, role Role) (EngineState, error)
	Save(ctx context.Context, role Role, st EngineState) error
	Clear(ctx context.Context, role Role) error
}

// NotificationArchive is the append-only dispatch history.
type NotificationArchive interface {
	Append(ctx context.Context, role Role, cycleID string, recs []NotificationRecord) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ArchivedNotification, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SignalBus provides pub/sub for badge updates.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
