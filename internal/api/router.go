// Package api implements the paydesk JSON HTTP API mounted under /api.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paydesk/paydesk/internal/auth"
	"github.com/paydesk/paydesk/internal/notify"
	"github.com/paydesk/paydesk/internal/session"
	"github.com/paydesk/paydesk/internal/stats"
	"github.com/paydesk/paydesk/internal/store"
	"github.com/paydesk/paydesk/pkg/webcore"
)

// Version is reported by the service index.
const Version = "1.0.0"

// Publisher emits change notifications.
type Publisher interface {
	Publish(eventType string, data any) notify.Event
}

// Deps are the collaborators of a Handler.
type Deps struct {
	DB           *store.DB
	Codec        session.Codec
	Gate         *auth.Gate
	Stats        *stats.Assembler
	Events       Publisher // optional
	Middleware   *webcore.Middleware
	Logger       *slog.Logger
	CookieSecure bool
}

// Handler holds all API handler state.
type Handler struct {
	db     *store.DB
	codec  session.Codec
	gate   *auth.Gate
	stats  *stats.Assembler
	events Publisher
	mw     *webcore.Middleware
	logger *slog.Logger
	secure bool
	now    func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := d.Stats
	if st == nil {
		st = stats.New(d.DB, logger, d.DB.Clock().Now)
	}
	return &Handler{
		db:     d.DB,
		codec:  d.Codec,
		gate:   d.Gate,
		stats:  st,
		events: d.Events,
		mw:     d.Middleware,
		logger: logger,
		secure: d.CookieSecure,
		now:    d.DB.Clock().Now,
	}
}

// Routes mounts the API on r. admin, when non-nil, is mounted under the
// gated /api group.
func (h *Handler) Routes(r chi.Router, admin func(chi.Router)) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		webcore.Error(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(methodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Index)
		r.Post("/", methodNotAllowed)
		r.Put("/", methodNotAllowed)
		r.Patch("/", methodNotAllowed)
		r.Delete("/", methodNotAllowed)
		r.Get("/health", h.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signin", h.SignIn)
			r.Post("/signup", h.SignUp)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.gate.Middleware(webcore.Error))

			r.Get("/dashboard/stats", h.DashboardStats)

			r.Get("/merchants", h.ListMerchants)
			r.Post("/merchants", h.CreateMerchant)
			r.Get("/merchants/{id}", h.GetMerchant)
			r.Put("/merchants/{id}", h.UpdateMerchant)

			idem := h.mw.IdempotencyBy(sessionOwner)
			r.With(idem).Post("/transactions", h.CreateTransaction)
			r.Get("/transactions", h.ListTransactions)

			r.Get("/mobile-apps", h.ListApps)
			r.Post("/mobile-apps", h.CreateApp)
			r.Put("/mobile-apps", h.UpdateApp)
			r.Get("/mobile-apps/transactions", h.ListAppTransactions)
			r.With(idem).Post("/mobile-apps/transactions", h.CreateAppTransaction)

			r.Get("/support", h.ListTickets)
			r.Post("/support", h.CreateTicket)
			r.Get("/support/{id}", h.GetTicket)
			r.Put("/support/{id}", h.UpdateTicket)
			r.Post("/support/{id}", h.AddResponse)

			if admin != nil {
				admin(r)
			}
		})
	})
}

// sessionOwner scopes idempotency keys to the signed-in user.
func sessionOwner(r *http.Request) string {
	p, _ := auth.PrincipalFrom(r.Context())
	return p.ID
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	webcore.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (h *Handler) publish(eventType string, data any) {
	if h.events == nil {
		return
	}
	evt := h.events.Publish(eventType, data)
	h.logger.Debug("event published", "type", eventType, "event_id", evt.ID)
}
