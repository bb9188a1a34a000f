// Package handler contains the HTTP handlers for the orderwatch API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tablr/orderwatch/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// roleParam extracts and validates the {role} path parameter using Go 1.22+
// built-in routing (http.Request.PathValue).
func roleParam(r *http.Request) (domain.Role, error) {
	switch role := domain.Role(r.PathValue("role")); role {
	case domain.RoleAdmin, domain.RoleCourier:
		return role, nil
	default:
		return "", domain.ErrInvalidRole
	}
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
