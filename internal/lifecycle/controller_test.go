package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablr/orderwatch/internal/domain"
	"github.com/tablr/orderwatch/internal/engine"
)

type blockingFetcher struct {
	calls   atomic.Int64
	gate    chan struct{} // nil means never block
	snaps   []domain.OrderSnapshot
	snapsMu sync.Mutex
}

func (f *blockingFetcher) FetchWorkingSet(ctx context.Context) ([]domain.OrderSnapshot, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-time.After(5 * time.Second):
		}
	}
	f.snapsMu.Lock()
	defer f.snapsMu.Unlock()
	return append([]domain.OrderSnapshot(nil), f.snaps...), nil
}

type nullStore struct{}

func (nullStore) Load(context.Context, domain.Role) (domain.EngineState, error) {
	return domain.EngineState{}, domain.ErrNotFound
}
func (nullStore) Save(context.Context, domain.Role, domain.EngineState) error { return nil }
func (nullStore) Clear(context.Context, domain.Role) error                    { return nil }

type nullDispatcher struct{}

func (nullDispatcher) Schedule(context.Context, domain.PushNotification) error { return nil }

type countingHeartbeater struct {
	calls atomic.Int64
}

func (h *countingHeartbeater) Heartbeat(context.Context) error {
	h.calls.Add(1)
	return nil
}

func testEngine(fetcher engine.Fetcher, poll time.Duration) *engine.Engine {
	return engine.New(engine.Deps{
		Rules:      engine.AdminRules(poll, 100, 30),
		Fetcher:    fetcher,
		Store:      nullStore{},
		Dispatcher: nullDispatcher{},
	})
}

func TestController_StartRunsImmediateCycle(t *testing.T) {
	fetcher := &blockingFetcher{}
	ctl := New(testEngine(fetcher, time.Hour), nil, nil, nil)

	ctl.Start(context.Background())
	defer ctl.Stop()

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond, "start must run a cycle without waiting for the ticker")
}

func TestController_StartIsIdempotent(t *testing.T) {
	fetcher := &blockingFetcher{}
	ctl := New(testEngine(fetcher, time.Hour), nil, nil, nil)

	ctl.Start(context.Background())
	ctl.Start(context.Background())
	defer ctl.Stop()

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, fetcher.calls.Load(), "second Start must not spawn a second cycle loop")
}

func TestController_StopIsIdempotent(t *testing.T) {
	fetcher := &blockingFetcher{}
	ctl := New(testEngine(fetcher, time.Hour), nil, nil, nil)

	ctl.Start(context.Background())
	ctl.Stop()
	ctl.Stop()
}

func TestController_TriggerNow(t *testing.T) {
	fetcher := &blockingFetcher{}
	ctl := New(testEngine(fetcher, time.Hour), nil, nil, nil)

	ctl.Start(context.Background())
	defer ctl.Stop()

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	ctl.TriggerNow()
	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond, "trigger must run a cycle ahead of the ticker")
}

func TestController_PollTicker(t *testing.T) {
	fetcher := &blockingFetcher{}
	ctl := New(testEngine(fetcher, 20*time.Millisecond), nil, nil, nil)

	ctl.Start(context.Background())
	defer ctl.Stop()

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestController_BackgroundSuspendsForegroundResumes(t *testing.T) {
	fetcher := &blockingFetcher{}
	events := make(chan Event, 1)
	ctl := New(testEngine(fetcher, 20*time.Millisecond), nil, events, nil)

	ctl.Start(context.Background())
	defer ctl.Stop()

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	events <- EventBackground
	time.Sleep(60 * time.Millisecond)
	suspended := fetcher.calls.Load()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, suspended, fetcher.calls.Load(), "no cycles while backgrounded")

	events <- EventForeground
	require.Eventually(t, func() bool {
		return fetcher.calls.Load() > suspended
	}, time.Second, 5*time.Millisecond, "foreground must trigger an immediate cycle")
}

func TestController_ForegroundHeartbeats(t *testing.T) {
	fetcher := &blockingFetcher{}
	hb := &countingHeartbeater{}
	events := make(chan Event, 1)
	ctl := New(testEngine(fetcher, time.Hour), hb, events, nil)

	ctl.Start(context.Background())
	defer ctl.Stop()

	events <- EventForeground
	require.Eventually(t, func() bool {
		return hb.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestController_InFlightLatch(t *testing.T) {
	fetcher := &blockingFetcher{gate: make(chan struct{})}
	ctl := New(testEngine(fetcher, time.Hour), nil, nil, nil)

	ctl.Start(context.Background())
	defer ctl.Stop()

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Triggers while the first fetch is unresolved are dropped, not queued.
	ctl.TriggerNow()
	ctl.TriggerNow()
	time.Sleep(50 * time.Millisecond)

	close(fetcher.gate)
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, fetcher.calls.Load(), int64(2),
		"overlapping triggers must not stack extra cycles")
}

func TestController_StopDiscardsInFlightResult(t *testing.T) {
	fetcher := &blockingFetcher{gate: make(chan struct{})}
	fetcher.snapsMu.Lock()
	fetcher.snaps = []domain.OrderSnapshot{{
		OrderID:   "ord-1",
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC().Add(time.Minute),
	}}
	fetcher.snapsMu.Unlock()

	eng := testEngine(fetcher, time.Hour)
	ctl := New(eng, nil, nil, nil)

	ctl.Start(context.Background())
	require.Eventually(t, func() bool {
		return fetcher.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	ctl.Stop()
	close(fetcher.gate)
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, eng.Feed(), "a fetch resolving after stop must not mutate state")
}
