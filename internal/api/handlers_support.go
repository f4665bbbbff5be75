package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paydesk/paydesk/internal/notify"
	"github.com/paydesk/paydesk/internal/query"
	"github.com/paydesk/paydesk/internal/store"
	"github.com/paydesk/paydesk/pkg/webcore"
)

type ticketRequest struct {
	MerchantID  string  `json:"merchant_id"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Category    *string `json:"category"`
}

type responseRequest struct {
	ResponseText    string  `json:"response_text"`
	IsStaffResponse bool    `json:"is_staff_response"`
	ResponderName   *string `json:"responder_name"`
	ResponderEmail  *string `json:"responder_email"`
}

// ListTickets handles GET /api/support.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	p, err := store.TicketList.Parse(r.URL.Query())
	if err != nil {
		h.fail(w, err, "Failed to fetch support tickets", "")
		return
	}
	page, err := h.db.ListTickets(r.Context(), p)
	if err != nil {
		h.fail(w, err, "Failed to fetch support tickets", "")
		return
	}
	webcore.JSON(w, http.StatusOK, listResponse(store.TicketList, page))
}

// CreateTicket handles POST /api/support. An unknown merchant_id is a
// validation error.
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, err, "Failed to create support ticket", "")
		return
	}
	if req.MerchantID == "" || req.Subject == "" || req.Description == "" {
		webcore.Error(w, http.StatusBadRequest, "Merchant ID, subject, and description are required")
		return
	}
	errs := query.FieldErrors{}
	enum(errs, "priority", req.Priority, store.TicketPriorities)
	if len(errs) > 0 {
		webcore.ValidationError(w, "Validation failed", errs)
		return
	}

	t, err := h.db.CreateTicket(r.Context(), store.SupportTicket{
		MerchantID:  req.MerchantID,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
	})
	if err != nil {
		h.fail(w, err, "Failed to create support ticket", "")
		return
	}
	webcore.JSON(w, http.StatusCreated, t)
}

// GetTicket handles GET /api/support/{id}.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.db.TicketByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err, "Failed to fetch support ticket", "Support ticket not found")
		return
	}
	webcore.JSON(w, http.StatusOK, t)
}

// UpdateTicket handles PUT /api/support/{id}. Resolving a ticket emits
// support_ticket.resolved.
func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err, "Failed to update support ticket", "")
		return
	}
	set, err := store.TicketUpdate.Coerce(body)
	if errors.Is(err, query.ErrNoFields) {
		webcore.Error(w, http.StatusBadRequest, "No valid fields to update")
		return
	}
	if err != nil {
		h.fail(w, err, "Failed to update support ticket", "")
		return
	}

	prev, t, err := h.db.UpdateTicket(r.Context(), chi.URLParam(r, "id"), set)
	if err != nil {
		h.fail(w, err, "Failed to update support ticket", "Support ticket not found")
		return
	}
	if prev != "resolved" && t.Status == "resolved" {
		h.publish(notify.TicketResolved, t)
	}
	webcore.JSON(w, http.StatusOK, t)
}

// AddResponse handles POST /api/support/{id}.
func (h *Handler) AddResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, err, "Failed to add support response", "")
		return
	}
	if req.ResponseText == "" {
		webcore.Error(w, http.StatusBadRequest, "Response text is required")
		return
	}

	resp, err := h.db.AddResponse(r.Context(), store.SupportResponse{
		TicketID:        chi.URLParam(r, "id"),
		ResponseText:    req.ResponseText,
		IsStaffResponse: req.IsStaffResponse,
		ResponderName:   req.ResponderName,
		ResponderEmail:  req.ResponderEmail,
	})
	if err != nil {
		h.fail(w, err, "Failed to add support response", "Support ticket not found")
		return
	}
	webcore.JSON(w, http.StatusCreated, resp)
}
