// Package httphandler implements the JSON API driving adapter.
package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kernelkit/test-system-status/internal/config"
	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// SnapshotSource provides the dashboard snapshot. *application.PollService
// satisfies it.
type SnapshotSource interface {
	Latest() *model.Snapshot
	Refresh(ctx context.Context) (*model.Snapshot, error)
}

// Handler is the HTTP driving adapter that serves the JSON data feed.
type Handler struct {
	source SnapshotSource
	cfg    *config.Config
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(source SnapshotSource, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		source: source,
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterAPIRoutes registers the JSON API routes on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("POST /api/refresh", h.Refresh)
	mux.HandleFunc("GET /api/config", h.Config)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// ApplyMiddleware wraps next with recovery and request logging.
func ApplyMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, next)
	return loggingMiddleware(logger, wrapped)
}

// NewServeMux creates an http.Handler serving only the API routes, wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// Status returns the latest snapshot as the data feed. Before the first poll
// completes it answers 503 so clients retry.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.source.Latest()
	if snapshot == nil {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "status not yet available")
		return
	}

	writeJSON(w, http.StatusOK, toStatusFeed(*snapshot))
}

// Refresh rebuilds every repository report immediately and returns the new feed.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.source.Refresh(r.Context())
	if err != nil {
		h.logger.Error("manual refresh failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, toStatusFeed(*snapshot))
}

// Config returns the watched repositories and dashboard settings. The token
// is never included.
func (h *Handler) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toConfigResponse(h.cfg))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if snapshot := h.source.Latest(); snapshot != nil {
		resp.LastPoll = snapshot.Timestamp.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
