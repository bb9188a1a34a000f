package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tablr/orderwatch/internal/domain"
)

// memStore is an in-memory StateStore.
type memStore struct {
	mu    sync.Mutex
	state map[domain.Role]domain.EngineState
	saves int
	err   error
}

func newMemStore() *memStore {
	return &memStore{state: make(map[domain.Role]domain.EngineState)}
}

func (m *memStore) Load(_ context.Context, role domain.Role) (domain.EngineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.EngineState{}, m.err
	}
	st, ok := m.state[role]
	if !ok {
		return domain.EngineState{}, domain.ErrNotFound
	}
	return st, nil
}

func (m *memStore) Save(_ context.Context, role domain.Role, st domain.EngineState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.state[role] = st
	m.saves++
	return nil
}

func (m *memStore) Clear(_ context.Context, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, role)
	return nil
}

// stubFetcher returns a fixed snapshot set or error.
type stubFetcher struct {
	mu    sync.Mutex
	snaps []domain.OrderSnapshot
	err   error
	calls int
}

func (f *stubFetcher) FetchWorkingSet(_ context.Context) ([]domain.OrderSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.OrderSnapshot(nil), f.snaps...), nil
}

func (f *stubFetcher) set(snaps ...domain.OrderSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = snaps
}

// recDispatcher records every scheduled push.
type recDispatcher struct {
	mu     sync.Mutex
	pushes []domain.PushNotification
}

func (d *recDispatcher) Schedule(_ context.Context, n domain.PushNotification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushes = append(d.pushes, n)
	return nil
}

func (d *recDispatcher) all() []domain.PushNotification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.PushNotification(nil), d.pushes...)
}

// memBus records published payloads per channel.
type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: make(map[string][][]byte)}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

// memArchive is an in-memory NotificationArchive. Like the backing table, it
// deduplicates on (role, record id) and never rewrites a stored row.
type memArchive struct {
	mu   sync.Mutex
	rows []domain.ArchivedNotification
	seen map[string]bool
}

func newMemArchive() *memArchive {
	return &memArchive{seen: make(map[string]bool)}
}

func (a *memArchive) Append(_ context.Context, role domain.Role, cycleID string, recs []domain.NotificationRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, rec := range recs {
		key := string(role) + "/" + rec.ID
		if a.seen[key] {
			continue
		}
		a.seen[key] = true
		a.rows = append(a.rows, domain.ArchivedNotification{
			ID:           int64(len(a.rows) + 1),
			Role:         role,
			CycleID:      cycleID,
			RecordID:     rec.ID,
			Type:         rec.Type,
			Title:        rec.Title,
			Message:      rec.Message,
			OrderID:      rec.OrderID,
			Amount:       rec.Amount,
			Address:      rec.Address,
			DispatchedAt: rec.Timestamp,
		})
	}
	return nil
}

func (a *memArchive) ListBefore(context.Context, time.Time, int) ([]domain.ArchivedNotification, error) {
	return nil, nil
}

func (a *memArchive) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (a *memArchive) all() []domain.ArchivedNotification {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.ArchivedNotification(nil), a.rows...)
}

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture bundles an engine with its fakes.
type fixture struct {
	eng     *Engine
	store   *memStore
	fetcher *stubFetcher
	disp    *recDispatcher
	bus     *memBus
	arch    *memArchive
	clock   *testClock
}

var testEpoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newFixture(rules Rules) *fixture {
	f := &fixture{
		store:   newMemStore(),
		fetcher: &stubFetcher{},
		disp:    &recDispatcher{},
		bus:     newMemBus(),
		arch:    newMemArchive(),
		clock:   newTestClock(testEpoch),
	}
	f.eng = New(Deps{
		Rules:      rules,
		Fetcher:    f.fetcher,
		Store:      f.store,
		Dispatcher: f.disp,
		Archive:    f.arch,
		Bus:        f.bus,
		Clock:      f.clock.Now,
	})
	return f
}

func adminFixture() *fixture {
	return newFixture(AdminRules(2*time.Minute, 100, 30))
}

func courierFixture() *fixture {
	return newFixture(CourierRules(15*time.Second, 2*time.Minute, 100, 30))
}

func snapshot(id string, status domain.OrderStatus, createdAt time.Time) domain.OrderSnapshot {
	return domain.OrderSnapshot{
		OrderID:         id,
		Status:          status,
		TotalAmount:     42.50,
		Address:         "12 Rose Lane",
		CreatedAt:       createdAt,
		StatusUpdatedAt: createdAt,
	}
}
