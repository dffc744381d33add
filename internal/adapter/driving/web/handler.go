// Package web implements the HTML dashboard driving adapter using templ components.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kernelkit/test-system-status/internal/adapter/driving/web/templates"
	"github.com/kernelkit/test-system-status/internal/adapter/driving/web/templates/pages"
	"github.com/kernelkit/test-system-status/internal/domain/model"
)

// SnapshotSource provides the dashboard snapshot. *application.PollService
// satisfies it.
type SnapshotSource interface {
	Latest() *model.Snapshot
	Refresh(ctx context.Context) (*model.Snapshot, error)
}

// Handler is the web driving adapter that serves the dashboard HTML.
type Handler struct {
	source          SnapshotSource
	displayPatterns []string
	refreshSeconds  int
	logger          *slog.Logger
	now             func() time.Time
}

// NewHandler creates a Handler. displayPatterns selects the jobs shown on the
// cards; refreshSeconds is the page reload period.
func NewHandler(source SnapshotSource, displayPatterns []string, refreshSeconds int, logger *slog.Logger) *Handler {
	return &Handler{
		source:          source,
		displayPatterns: displayPatterns,
		refreshSeconds:  refreshSeconds,
		logger:          logger,
		now:             time.Now,
	}
}

// Dashboard renders the main dashboard page with the full HTML layout.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	page := toDashboardViewModel(h.source.Latest(), h.displayPatterns, h.reloadSeconds(), h.now())
	page.CSRFToken = csrfToken(w, r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	layout := templates.Layout(page.Title, page.RefreshSeconds, pages.Dashboard(page))
	if err := layout.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render dashboard", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// Refresh handles the dashboard's refresh button: it rebuilds every report
// and redirects back to the dashboard.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	if _, err := h.source.Refresh(r.Context()); err != nil {
		h.logger.Error("dashboard refresh failed", "error", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// reloadSeconds is the page reload period. While builds are pending the page
// follows the poll loop's one minute cadence.
func (h *Handler) reloadSeconds() int {
	const pendingSeconds = 60
	if s := h.source.Latest(); s != nil && s.HasPending() && pendingSeconds < h.refreshSeconds {
		return pendingSeconds
	}
	return h.refreshSeconds
}
