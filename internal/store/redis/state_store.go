package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tablr/orderwatch/internal/domain"
)

// StateStore implements domain.StateStore on Redis with JSON-serialized
// blobs. Keys are namespaced per role so admin and courier sessions can never
// contaminate each other.
//
// Key schema:
//
//	orderwatch:{role}:ledger - JSON of ledger + assignment set + attention
//	orderwatch:{role}:feed   - JSON array of notification records
//	orderwatch:{role}:marker - RFC3339 last-check timestamp
type StateStore struct {
	rdb *redis.Client
}

// NewStateStore creates a StateStore backed by the given Client.
func NewStateStore(c *Client) *StateStore {
	return &StateStore{rdb: c.Underlying()}
}

func ledgerKey(role domain.Role) string { return "orderwatch:" + string(role) + ":ledger" }
func feedKey(role domain.Role) string   { return "orderwatch:" + string(role) + ":feed" }
func markerKey(role domain.Role) string { return "orderwatch:" + string(role) + ":marker" }

// ledgerBlob is the persisted shape of everything except the feed and marker.
type ledgerBlob struct {
	Ledger    map[string]domain.OrderStatus `json:"ledger"`
	Assigned  map[string]bool               `json:"assigned,omitempty"`
	Attention int                           `json:"attention"`
}

// Load reads the persisted state for a role. It returns domain.ErrNotFound
// when no ledger has been written yet.
func (s *StateStore) Load(ctx context.Context, role domain.Role) (domain.EngineState, error) {
	var st domain.EngineState

	data, err := s.rdb.Get(ctx, ledgerKey(role)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return st, domain.ErrNotFound
		}
		return st, fmt.Errorf("redis: get ledger %s: %w", role, err)
	}
	var blob ledgerBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return st, fmt.Errorf("redis: unmarshal ledger %s: %w", role, err)
	}
	st.Ledger = blob.Ledger
	st.Assigned = blob.Assigned
	st.Attention = blob.Attention

	feedData, err := s.rdb.Get(ctx, feedKey(role)).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(feedData, &st.Feed); err != nil {
			return st, fmt.Errorf("redis: unmarshal feed %s: %w", role, err)
		}
	case errors.Is(err, redis.Nil):
		st.Feed = []domain.NotificationRecord{}
	default:
		return st, fmt.Errorf("redis: get feed %s: %w", role, err)
	}

	marker, err := s.rdb.Get(ctx, markerKey(role)).Result()
	switch {
	case err == nil:
		t, perr := time.Parse(time.RFC3339Nano, marker)
		if perr != nil {
			return st, fmt.Errorf("redis: parse marker %s: %w", role, perr)
		}
		st.LastCheck = t
	case errors.Is(err, redis.Nil):
		// Marker initialization is the engine's job; leave zero.
	default:
		return st, fmt.Errorf("redis: get marker %s: %w", role, err)
	}

	return st, nil
}

// Save commits {ledger, feed, marker} in a single MULTI/EXEC pipeline so a
// cycle's persistence is all-or-nothing.
func (s *StateStore) Save(ctx context.Context, role domain.Role, st domain.EngineState) error {
	blob, err := json.Marshal(ledgerBlob{
		Ledger:    st.Ledger,
		Assigned:  st.Assigned,
		Attention: st.Attention,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal ledger %s: %w", role, err)
	}
	feed, err := json.Marshal(st.Feed)
	if err != nil {
		return fmt.Errorf("redis: marshal feed %s: %w", role, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, ledgerKey(role), blob, 0)
	pipe.Set(ctx, feedKey(role), feed, 0)
	pipe.Set(ctx, markerKey(role), st.LastCheck.UTC().Format(time.RFC3339Nano), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save state %s: %w", role, err)
	}
	return nil
}

// Clear removes all persisted state for a role (logout / explicit reset).
func (s *StateStore) Clear(ctx context.Context, role domain.Role) error {
	if err := s.rdb.Del(ctx, ledgerKey(role), feedKey(role), markerKey(role)).Err(); err != nil {
		return fmt.Errorf("redis: clear state %s: %w", role, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.StateStore = (*StateStore)(nil)
