package archive

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablr/orderwatch/internal/domain"
)

type memArchive struct {
	mu   sync.Mutex
	rows []domain.ArchivedNotification
}

func (m *memArchive) Append(context.Context, domain.Role, string, []domain.NotificationRecord) error {
	return nil
}

func (m *memArchive) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.ArchivedNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ArchivedNotification
	for _, r := range m.rows {
		if r.DispatchedAt.Before(cutoff) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memArchive) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var deleted int64
	for _, r := range m.rows {
		if r.DispatchedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return deleted, nil
}

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = make(map[string][]byte)
	}
	b.objects[path] = body
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiver_Run(t *testing.T) {
	now := time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)
	old := now.Add(-100 * 24 * time.Hour)

	store := &memArchive{rows: []domain.ArchivedNotification{
		{ID: 1, Role: domain.RoleAdmin, RecordID: "r1", Type: domain.NotifyNewOrder, OrderID: "a", DispatchedAt: old},
		{ID: 2, Role: domain.RoleAdmin, RecordID: "r2", Type: domain.NotifyCancelled, OrderID: "b", DispatchedAt: old.Add(time.Hour)},
		{ID: 3, Role: domain.RoleCourier, RecordID: "r3", Type: domain.NotifyDelivered, OrderID: "c", DispatchedAt: now.Add(-time.Hour)},
	}}
	blob := &memBlob{}

	a := NewArchiver(store, blob, 90, discardLogger())
	a.now = func() time.Time { return now }

	require.NoError(t, a.Run(context.Background()))

	// Fresh rows stay in Postgres.
	require.Len(t, store.rows, 1)
	assert.Equal(t, "r3", store.rows[0].RecordID)

	// The aged rows landed in one JSONL object.
	require.Len(t, blob.objects, 1)
	for key, body := range blob.objects {
		assert.True(t, strings.HasPrefix(key, "notifications/2026/"), key)
		assert.True(t, strings.HasSuffix(key, ".jsonl"), key)

		lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
		assert.Len(t, lines, 2)
		assert.Contains(t, string(lines[0]), `"recordId":"r1"`)
		assert.Contains(t, string(lines[1]), `"recordId":"r2"`)
	}
}

func TestArchiver_RunNothingToDo(t *testing.T) {
	store := &memArchive{}
	blob := &memBlob{}

	a := NewArchiver(store, blob, 90, discardLogger())
	require.NoError(t, a.Run(context.Background()))
	assert.Empty(t, blob.objects)
}
