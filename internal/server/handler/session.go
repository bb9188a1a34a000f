package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tablr/orderwatch/internal/domain"
	"github.com/tablr/orderwatch/internal/engine"
	"github.com/tablr/orderwatch/internal/lifecycle"
)

// SessionHandler exposes the cadence controls: manual cycle trigger, host
// lifecycle transitions and logout reset.
type SessionHandler struct {
	engines     map[domain.Role]*engine.Engine
	controllers map[domain.Role]*lifecycle.Controller
	events      map[domain.Role]chan<- lifecycle.Event
	// runCtx outlives any single request; a controller restarted on login
	// must not die with the request that started it.
	runCtx context.Context
	logger *slog.Logger
}

// NewSessionHandler creates a SessionHandler over the per-role controllers.
// runCtx is the application's run context; controllers restarted on login are
// bound to it rather than to the triggering request.
func NewSessionHandler(
	runCtx context.Context,
	engines map[domain.Role]*engine.Engine,
	controllers map[domain.Role]*lifecycle.Controller,
	events map[domain.Role]chan<- lifecycle.Event,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		engines:     engines,
		controllers: controllers,
		events:      events,
		runCtx:      runCtx,
		logger:      logHandler(logger, "session"),
	}
}

func (h *SessionHandler) roleFor(w http.ResponseWriter, r *http.Request) (domain.Role, bool) {
	role, err := roleParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role")
		return "", false
	}
	if _, ok := h.controllers[role]; !ok {
		writeError(w, http.StatusNotFound, "role not enabled")
		return "", false
	}
	return role, true
}

// TriggerCycle requests an immediate diff cycle. The admin client calls this
// on every orders-screen visit; a cycle already in flight absorbs the request.
// POST /api/{role}/cycle
func (h *SessionHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleFor(w, r)
	if !ok {
		return
	}
	h.controllers[role].TriggerNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// lifecycleReq is the body of a lifecycle transition report.
type lifecycleReq struct {
	Event string `json:"event"`
}

// ReportLifecycle forwards a host app lifecycle transition to the role's
// controller. Foreground resumes cycling with an immediate cycle; background
// suspends the timer.
// POST /api/{role}/lifecycle
func (h *SessionHandler) ReportLifecycle(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleFor(w, r)
	if !ok {
		return
	}

	var req lifecycleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var ev lifecycle.Event
	switch req.Event {
	case "foreground":
		ev = lifecycle.EventForeground
	case "background":
		ev = lifecycle.EventBackground
	default:
		writeError(w, http.StatusBadRequest, "event must be foreground or background")
		return
	}

	select {
	case h.events[role] <- ev:
	default:
		// The controller drains events promptly; a full channel means it
		// stopped, which logout handles.
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Logout stops the role's controller and clears all persisted session state.
// A fetch already in flight finishes but its result is discarded.
// POST /api/{role}/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleFor(w, r)
	if !ok {
		return
	}

	h.controllers[role].Stop()
	if err := h.engines[role].Reset(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "reset failed",
			slog.String("role", string(role)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to clear session state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Login restarts the role's controller after a logout, restoring (now empty)
// state and beginning a fresh session with the marker set to now.
// POST /api/{role}/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleFor(w, r)
	if !ok {
		return
	}
	h.controllers[role].Start(h.runCtx)
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}
