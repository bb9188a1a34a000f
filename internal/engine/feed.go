package engine

import (
	"context"

	"github.com/tablr/orderwatch/internal/domain"
)

// Feed returns a copy of the current feed, newest first.
func (e *Engine) Feed() []domain.NotificationRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.NotificationRecord(nil), e.st.Feed...)
}

// Badges returns the derived badge counts. Unread is counted from read flags;
// attention is the independent tab-scoped counter.
func (e *Engine) Badges() domain.BadgeCounts {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.BadgeCounts{
		Role:      e.rules.Role,
		Unread:    unreadLocked(e.st.Feed),
		Attention: e.st.Attention,
	}
}

// MarkAllRead flips every record's read flag, taking the unread count to
// zero. Invoked when the notification-feed view gains focus.
func (e *Engine) MarkAllRead(ctx context.Context) {
	e.mu.Lock()
	for i := range e.st.Feed {
		e.st.Feed[i].Read = true
	}
	e.mu.Unlock()

	e.persist(ctx)
	e.publishBadges(ctx)
}

// MarkRead marks a single record read. Returns false if no record has the id.
func (e *Engine) MarkRead(ctx context.Context, id string) bool {
	e.mu.Lock()
	found := false
	for i := range e.st.Feed {
		if e.st.Feed[i].ID == id {
			e.st.Feed[i].Read = true
			found = true
			break
		}
	}
	e.mu.Unlock()

	if found {
		e.persist(ctx)
		e.publishBadges(ctx)
	}
	return found
}

// ClearAttention resets the attention badge. Only an explicit user action on
// the attention tab calls this; cycles never clear it.
func (e *Engine) ClearAttention(ctx context.Context) {
	e.mu.Lock()
	e.st.Attention = 0
	e.mu.Unlock()

	e.persist(ctx)
	e.publishBadges(ctx)
}

func unreadLocked(feed []domain.NotificationRecord) int {
	n := 0
	for i := range feed {
		if !feed[i].Read {
			n++
		}
	}
	return n
}
