package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablr/orderwatch/internal/domain"
)

func seedFeed(t *testing.T, f *fixture, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.clock.Advance(time.Minute)
		f.fetcher.set(snapshot(fmt.Sprintf("ord-%d", i), domain.StatusPending, f.clock.Now()))
		require.NoError(t, f.eng.RunCycle(context.Background()))
	}
}

func TestMarkAllRead(t *testing.T) {
	f := adminFixture()
	f.eng.Restore(context.Background())
	seedFeed(t, f, 3)

	require.Equal(t, 3, f.eng.Badges().Unread)

	f.eng.MarkAllRead(context.Background())

	assert.Equal(t, 0, f.eng.Badges().Unread)
	for _, rec := range f.eng.Feed() {
		assert.True(t, rec.Read)
	}
}

func TestMarkRead_Single(t *testing.T) {
	f := adminFixture()
	f.eng.Restore(context.Background())
	seedFeed(t, f, 2)

	target := f.eng.Feed()[1]
	require.True(t, f.eng.MarkRead(context.Background(), target.ID))

	assert.Equal(t, 1, f.eng.Badges().Unread)
}

func TestMarkRead_UnknownID(t *testing.T) {
	f := adminFixture()
	f.eng.Restore(context.Background())
	seedFeed(t, f, 1)

	saves := f.store.saves
	assert.False(t, f.eng.MarkRead(context.Background(), "nope"))
	assert.Equal(t, saves, f.store.saves, "no persist when nothing changed")
}

func TestMarkAllRead_DoesNotTouchAttention(t *testing.T) {
	f := adminFixture()
	f.eng.Restore(context.Background())
	seedFeed(t, f, 2)

	f.eng.MarkAllRead(context.Background())

	badges := f.eng.Badges()
	assert.Equal(t, 0, badges.Unread)
	assert.Equal(t, 2, badges.Attention, "attention is independent of read state")
}

func TestClearAttention(t *testing.T) {
	f := adminFixture()
	f.eng.Restore(context.Background())
	seedFeed(t, f, 2)

	f.eng.ClearAttention(context.Background())

	badges := f.eng.Badges()
	assert.Equal(t, 0, badges.Attention)
	assert.Equal(t, 2, badges.Unread, "clearing attention leaves unread alone")
}

func TestBadges_PublishedOnCycle(t *testing.T) {
	f := adminFixture()
	f.eng.Restore(context.Background())
	seedFeed(t, f, 1)

	channel := domain.BadgeChannel(domain.RoleAdmin)
	payloads := f.bus.published[channel]
	require.NotEmpty(t, payloads)

	var counts domain.BadgeCounts
	require.NoError(t, json.Unmarshal(payloads[len(payloads)-1], &counts))
	assert.Equal(t, domain.RoleAdmin, counts.Role)
	assert.Equal(t, 1, counts.Unread)
	assert.Equal(t, 1, counts.Attention)
}

func TestFeed_ReturnsCopy(t *testing.T) {
	f := adminFixture()
	f.eng.Restore(context.Background())
	seedFeed(t, f, 1)

	feed := f.eng.Feed()
	feed[0].Read = true

	assert.Equal(t, 1, f.eng.Badges().Unread, "mutating the returned slice must not affect state")
}

func TestState_PersistedAcrossRestore(t *testing.T) {
	f := adminFixture()
	f.eng.Restore(context.Background())
	seedFeed(t, f, 2)
	f.eng.MarkAllRead(context.Background())

	// A second engine over the same store sees the same feed and flags.
	g := New(Deps{
		Rules:      f.eng.Rules(),
		Fetcher:    f.fetcher,
		Store:      f.store,
		Dispatcher: f.disp,
		Clock:      f.clock.Now,
	})
	g.Restore(context.Background())

	feed := g.Feed()
	require.Len(t, feed, 2)
	for _, rec := range feed {
		assert.True(t, rec.Read)
	}
	assert.Equal(t, 0, g.Badges().Unread)
	assert.Equal(t, 2, g.Badges().Attention)
}
