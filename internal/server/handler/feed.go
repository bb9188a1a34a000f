package handler

import (
	"log/slog"
	"net/http"

	"github.com/tablr/orderwatch/internal/domain"
	"github.com/tablr/orderwatch/internal/engine"
)

// FeedHandler serves the notification feed and badge endpoints for every
// enabled role.
type FeedHandler struct {
	engines map[domain.Role]*engine.Engine
	logger  *slog.Logger
}

// NewFeedHandler creates a FeedHandler over the per-role engines.
func NewFeedHandler(engines map[domain.Role]*engine.Engine, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		engines: engines,
		logger:  logHandler(logger, "feed"),
	}
}

func (h *FeedHandler) engineFor(w http.ResponseWriter, r *http.Request) (*engine.Engine, bool) {
	role, err := roleParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role")
		return nil, false
	}
	eng, ok := h.engines[role]
	if !ok {
		writeError(w, http.StatusNotFound, "role not enabled")
		return nil, false
	}
	return eng, true
}

// ListFeed returns the bounded feed, newest first.
// GET /api/{role}/feed
func (h *FeedHandler) ListFeed(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": eng.Feed(),
	})
}

// MarkAllRead flips every feed record to read. Invoked when the feed view
// gains focus.
// POST /api/{role}/feed/read
func (h *FeedHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	eng.MarkAllRead(r.Context())
	writeJSON(w, http.StatusOK, eng.Badges())
}

// MarkRead marks one record read by id.
// POST /api/{role}/feed/{id}/read
func (h *FeedHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing notification id")
		return
	}
	if !eng.MarkRead(r.Context(), id) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	writeJSON(w, http.StatusOK, eng.Badges())
}

// GetBadges returns the current unread and attention counts.
// GET /api/{role}/badges
func (h *FeedHandler) GetBadges(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, eng.Badges())
}

// ClearAttention resets the attention badge for the role's tab.
// POST /api/{role}/attention/clear
func (h *FeedHandler) ClearAttention(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	eng.ClearAttention(r.Context())
	writeJSON(w, http.StatusOK, eng.Badges())
}
