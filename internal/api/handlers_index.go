package api

import (
	"context"
	"net/http"
	"time"

	"github.com/paydesk/paydesk/internal/stats"
	"github.com/paydesk/paydesk/pkg/webcore"
)

// Index handles GET /api.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	webcore.JSON(w, http.StatusOK, map[string]any{
		"message": "API is running",
		"version": Version,
		"endpoints": []string{
			"/api/auth",
			"/api/dashboard",
			"/api/merchants",
			"/api/mobile-apps",
			"/api/support",
			"/api/transactions",
		},
	})
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "err", err)
		webcore.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "error",
			"database": "disconnected",
		})
		return
	}
	webcore.JSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": "connected",
	})
}

// DashboardStats handles GET /api/dashboard/stats. Failing sections are
// zeroed, so the response is always 200.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	period := stats.ParsePeriod(r.URL.Query().Get("period"))
	webcore.JSON(w, http.StatusOK, h.stats.Build(r.Context(), period))
}
