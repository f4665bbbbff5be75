// Package admin provides the /admin/* operations surface mounted under
// the API: health, the request log, runtime config and webhook
// deliveries.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paydesk/paydesk/internal/notify"
	"github.com/paydesk/paydesk/pkg/webcore"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConfigProvider exposes and updates runtime configuration.
type ConfigProvider interface {
	GetConfig() map[string]any
	UpdateConfig(updates map[string]any) error
}

// Webhooks is the part of the notification dispatcher the admin surface
// inspects and drives.
type Webhooks interface {
	URL() string
	SetURL(url string)
	Flush(ctx context.Context) error
	Deliveries() []notify.Delivery
	Queued() []notify.Event
}

// Handler provides the admin endpoints.
type Handler struct {
	db       Pinger
	config   ConfigProvider
	webhooks Webhooks
	mw       *webcore.Middleware
	started  time.Time
}

// NewHandler creates a new admin handler. webhooks may be nil.
func NewHandler(db Pinger, config ConfigProvider, mw *webcore.Middleware, webhooks Webhooks) *Handler {
	return &Handler{
		db:       db,
		config:   config,
		webhooks: webhooks,
		mw:       mw,
		started:  time.Now(),
	}
}

// Routes mounts the admin endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/requests", h.handleGetRequests)
		r.Delete("/requests", h.handleClearRequests)
		r.Get("/config", h.handleGetConfig)
		r.Patch("/config", h.handleUpdateConfig)
		r.Get("/webhooks", h.handleGetWebhooks)
		r.Post("/webhooks/flush", h.handleFlushWebhooks)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{
		"status":   "ok",
		"database": "connected",
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	}
	if err := h.db.Ping(ctx); err != nil {
		body["status"] = "degraded"
		body["database"] = "unreachable"
		body["error"] = err.Error()
		webcore.JSON(w, http.StatusServiceUnavailable, body)
		return
	}
	webcore.JSON(w, http.StatusOK, body)
}

func (h *Handler) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	webcore.JSON(w, http.StatusOK, h.mw.ReqLog.Entries())
}

func (h *Handler) handleClearRequests(w http.ResponseWriter, r *http.Request) {
	h.mw.ReqLog.Clear()
	webcore.JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) currentConfig() map[string]any {
	cfg := h.config.GetConfig()
	if h.webhooks != nil {
		cfg["webhook_url"] = h.webhooks.URL()
	}
	return cfg
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	webcore.JSON(w, http.StatusOK, h.currentConfig())
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		webcore.Error(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}

	var webhookURL *string
	if v, ok := updates["webhook_url"]; ok {
		s, isString := v.(string)
		if !isString {
			webcore.Error(w, http.StatusBadRequest, "webhook_url must be a string")
			return
		}
		if h.webhooks == nil {
			webcore.Error(w, http.StatusBadRequest, "webhooks are not enabled")
			return
		}
		webhookURL = &s
		delete(updates, "webhook_url")
	}

	if len(updates) > 0 {
		if err := h.config.UpdateConfig(updates); err != nil {
			webcore.Error(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if webhookURL != nil {
		h.webhooks.SetURL(*webhookURL)
	}
	webcore.JSON(w, http.StatusOK, h.currentConfig())
}

func (h *Handler) handleGetWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		webcore.JSON(w, http.StatusOK, map[string]any{
			"url":        "",
			"queued":     []notify.Event{},
			"deliveries": []notify.Delivery{},
		})
		return
	}
	webcore.JSON(w, http.StatusOK, map[string]any{
		"url":        h.webhooks.URL(),
		"queued":     h.webhooks.Queued(),
		"deliveries": h.webhooks.Deliveries(),
	})
}

func (h *Handler) handleFlushWebhooks(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		webcore.JSON(w, http.StatusOK, map[string]string{"status": "no webhooks configured"})
		return
	}
	if h.webhooks.URL() == "" {
		webcore.Error(w, http.StatusConflict, "webhook_url is not set")
		return
	}
	if err := h.webhooks.Flush(r.Context()); err != nil {
		webcore.Error(w, http.StatusBadGateway, "flush failed: "+err.Error())
		return
	}
	webcore.JSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}
