// Package engine implements the order-state diff cycle: it compares fetched
// order snapshots against the persisted ledger, classifies which transitions
// are new since the last observation, synthesizes exactly one notification per
// classified transition, keeps the bounded feed consistent with authoritative
// state, and derives the unread/attention badges.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tablr/orderwatch/internal/domain"
)

// Fetcher retrieves the current working set of orders (active plus a bounded
// recent-history window) from the remote Order API as one atomic unit.
type Fetcher interface {
	FetchWorkingSet(ctx context.Context) ([]domain.OrderSnapshot, error)
}

// Dispatcher hands a device push to the local notification service.
type Dispatcher interface {
	Schedule(ctx context.Context, n domain.PushNotification) error
}

// Deps bundles the engine's collaborators. Store, Fetcher and Dispatcher are
// required; Archive and Bus are optional.
type Deps struct {
	Rules      Rules
	Fetcher    Fetcher
	Store      domain.StateStore
	Dispatcher Dispatcher
	Archive    domain.NotificationArchive
	Bus        domain.SignalBus
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Engine owns the ledger, feed and markers for one authenticated role session.
// In-memory state is authoritative for the running session; persistence is
// committed after each successful cycle and reconciled on the next successful
// write if a commit fails.
type Engine struct {
	rules      Rules
	fetcher    Fetcher
	store      domain.StateStore
	dispatcher Dispatcher
	archive    domain.NotificationArchive
	bus        domain.SignalBus
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	st       domain.EngineState
	restored bool
}

// New creates an Engine from its dependencies.
func New(deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rules:      deps.Rules,
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		archive:    deps.Archive,
		bus:        deps.Bus,
		logger:     logger.With(slog.String("component", "engine"), slog.String("role", string(deps.Rules.Role))),
		now:        clock,
	}
}

// Rules returns the variant configuration the engine was built with.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Restore loads persisted state for the engine's role. On a missing or
// unreadable blob it falls back to empty state with the last-check marker set
// to now, so a fresh session never floods the feed with historical orders.
func (e *Engine) Restore(ctx context.Context) {
	st, err := e.store.Load(ctx, e.rules.Role)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("state load failed, starting empty", slog.String("error", err.Error()))
		}
		st = domain.NewEngineState(e.now())
	}
	if st.Ledger == nil {
		st.Ledger = map[string]domain.OrderStatus{}
	}
	if st.Assigned == nil {
		st.Assigned = map[string]bool{}
	}
	if st.LastCheck.IsZero() {
		st.LastCheck = e.now()
	}

	e.mu.Lock()
	e.st = st
	e.restored = true
	e.mu.Unlock()
}

// Reset clears all persisted and in-memory state for the role (logout).
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	e.st = domain.NewEngineState(e.now())
	e.restored = true
	e.mu.Unlock()

	if err := e.store.Clear(ctx, e.rules.Role); err != nil {
		return fmt.Errorf("engine: clear state: %w", err)
	}
	e.publishBadges(ctx)
	return nil
}

// RunCycle executes one fetch → classify → persist pass. The fetch is the
// only suspension point; if the context is cancelled while the fetch is in
// flight, the result is discarded with no mutation so nothing is resurrected
// after a stop. A fetch error aborts the cycle with no mutation either; the
// next cycle simply retries.
func (e *Engine) RunCycle(ctx context.Context) error {
	snaps, err := e.fetcher.FetchWorkingSet(ctx)
	if err != nil {
		return fmt.Errorf("engine: fetch working set: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// Stopped while the fetch was in flight. Discard the late result.
		return err
	}

	cycleID := uuid.NewString()
	now := e.now()

	e.mu.Lock()
	if !e.restored {
		e.mu.Unlock()
		e.Restore(ctx)
		e.mu.Lock()
	}
	res := e.applyLocked(snaps, now)
	e.mu.Unlock()

	e.persist(ctx)

	// Exactly one dispatch per classified transition. Corrective rewrites of
	// unclassified divergence never reach this loop.
	for _, p := range res.pushes {
		if err := e.dispatcher.Schedule(ctx, p); err != nil {
			e.logger.Warn("push dispatch failed",
				slog.String("order_id", p.Data.OrderID),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.archive != nil && len(res.dispatched) > 0 {
		if err := e.archive.Append(ctx, e.rules.Role, cycleID, res.dispatched); err != nil {
			e.logger.Warn("archive append failed", slog.String("error", err.Error()))
		}
	}

	e.publishBadges(ctx)

	e.logger.Info("cycle complete",
		slog.String("cycle_id", cycleID),
		slog.Int("snapshots", len(snaps)),
		slog.Int("classified", len(res.dispatched)),
		slog.Int("appended", res.appended),
		slog.Int("rewritten", res.rewritten),
	)
	return nil
}

// persist commits {feed, ledger, marker} best-effort. On failure the
// in-memory state stays authoritative and the next successful write
// reconciles storage.
func (e *Engine) persist(ctx context.Context) {
	e.mu.Lock()
	st := cloneState(e.st)
	e.mu.Unlock()

	if err := e.store.Save(ctx, e.rules.Role, st); err != nil {
		e.logger.Warn("state save failed, keeping in-memory state", slog.String("error", err.Error()))
	}
}

// publishBadges pushes the derived badge counts onto the signal bus so
// connected clients can update without polling.
func (e *Engine) publishBadges(ctx context.Context) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(e.Badges())
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, domain.BadgeChannel(e.rules.Role), payload); err != nil {
		e.logger.Debug("badge publish failed", slog.String("error", err.Error()))
	}
}

func cloneState(st domain.EngineState) domain.EngineState {
	out := domain.EngineState{
		Ledger:    make(map[string]domain.OrderStatus, len(st.Ledger)),
		Assigned:  make(map[string]bool, len(st.Assigned)),
		Feed:      append([]domain.NotificationRecord(nil), st.Feed...),
		LastCheck: st.LastCheck,
		Attention: st.Attention,
	}
	for k, v := range st.Ledger {
		out.Ledger[k] = v
	}
	for k, v := range st.Assigned {
		out.Assigned[k] = v
	}
	return out
}
