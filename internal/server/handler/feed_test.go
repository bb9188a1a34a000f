package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablr/orderwatch/internal/domain"
	"github.com/tablr/orderwatch/internal/engine"
)

type memStore struct {
	state map[domain.Role]domain.EngineState
}

func (m *memStore) Load(_ context.Context, role domain.Role) (domain.EngineState, error) {
	st, ok := m.state[role]
	if !ok {
		return domain.EngineState{}, domain.ErrNotFound
	}
	return st, nil
}

func (m *memStore) Save(_ context.Context, role domain.Role, st domain.EngineState) error {
	if m.state == nil {
		m.state = make(map[domain.Role]domain.EngineState)
	}
	m.state[role] = st
	return nil
}

func (m *memStore) Clear(_ context.Context, role domain.Role) error {
	delete(m.state, role)
	return nil
}

type stubFetcher struct {
	snaps []domain.OrderSnapshot
}

func (f *stubFetcher) FetchWorkingSet(context.Context) ([]domain.OrderSnapshot, error) {
	return f.snaps, nil
}

type nullDispatcher struct{}

func (nullDispatcher) Schedule(context.Context, domain.PushNotification) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFeedMux builds an admin-only engine with one unread notification and a
// mux with the feed routes registered.
func newFeedMux(t *testing.T) (*http.ServeMux, *engine.Engine) {
	t.Helper()

	fetcher := &stubFetcher{}
	eng := engine.New(engine.Deps{
		Rules:      engine.AdminRules(2*time.Minute, 100, 30),
		Fetcher:    fetcher,
		Store:      &memStore{},
		Dispatcher: nullDispatcher{},
	})
	eng.Restore(context.Background())

	fetcher.snaps = []domain.OrderSnapshot{{
		OrderID:   "ord-1",
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC().Add(time.Minute),
	}}
	require.NoError(t, eng.RunCycle(context.Background()))

	h := NewFeedHandler(map[domain.Role]*engine.Engine{domain.RoleAdmin: eng}, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{role}/feed", h.ListFeed)
	mux.HandleFunc("POST /api/{role}/feed/read", h.MarkAllRead)
	mux.HandleFunc("POST /api/{role}/feed/{id}/read", h.MarkRead)
	mux.HandleFunc("GET /api/{role}/badges", h.GetBadges)
	mux.HandleFunc("POST /api/{role}/attention/clear", h.ClearAttention)

	return mux, eng
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestListFeed(t *testing.T) {
	mux, _ := newFeedMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/admin/feed")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Notifications []domain.NotificationRecord `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "ord-1", body.Notifications[0].OrderID)
}

func TestListFeed_InvalidRole(t *testing.T) {
	mux, _ := newFeedMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/superuser/feed")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFeed_RoleNotEnabled(t *testing.T) {
	mux, _ := newFeedMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/courier/feed")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAllRead_Endpoint(t *testing.T) {
	mux, eng := newFeedMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/feed/read")
	require.Equal(t, http.StatusOK, rec.Code)

	var badges domain.BadgeCounts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &badges))
	assert.Equal(t, 0, badges.Unread)
	assert.Equal(t, 0, eng.Badges().Unread)
}

func TestMarkRead_Endpoint(t *testing.T) {
	mux, eng := newFeedMux(t)
	id := eng.Feed()[0].ID

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/feed/"+id+"/read")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, eng.Badges().Unread)

	rec = doRequest(t, mux, http.MethodPost, "/api/admin/feed/unknown/read")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBadges_Endpoint(t *testing.T) {
	mux, _ := newFeedMux(t)

	rec := doRequest(t, mux, http.MethodGet, "/api/admin/badges")
	require.Equal(t, http.StatusOK, rec.Code)

	var badges domain.BadgeCounts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &badges))
	assert.Equal(t, domain.RoleAdmin, badges.Role)
	assert.Equal(t, 1, badges.Unread)
	assert.Equal(t, 1, badges.Attention)
}

func TestClearAttention_Endpoint(t *testing.T) {
	mux, eng := newFeedMux(t)

	rec := doRequest(t, mux, http.MethodPost, "/api/admin/attention/clear")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, eng.Badges().Attention)
	assert.Equal(t, 1, eng.Badges().Unread)
}
