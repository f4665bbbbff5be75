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

type merchantRequest struct {
	BusinessName           string     `json:"business_name"`
	ContactName            string     `json:"contact_name"`
	Email                  string     `json:"email"`
	Phone                  *string    `json:"phone"`
	BusinessType           *string    `json:"business_type"`
	Website                *string    `json:"website"`
	Address                *string    `json:"address"`
	City                   *string    `json:"city"`
	State                  *string    `json:"state"`
	ZipCode                *string    `json:"zip_code"`
	Country                string     `json:"country"`
	MonthlyProcessingLimit nullAmount `json:"monthly_processing_limit"`
	ProcessingFeeRate      nullAmount `json:"processing_fee_rate"`
	IsLoyalMerchant        bool       `json:"is_loyal_merchant"`
}

// ListMerchants handles GET /api/merchants.
func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	p, err := store.MerchantList.Parse(r.URL.Query())
	if err != nil {
		h.fail(w, err, "Failed to fetch merchants", "")
		return
	}
	page, err := h.db.ListMerchants(r.Context(), p)
	if err != nil {
		h.fail(w, err, "Failed to fetch merchants", "")
		return
	}
	webcore.JSON(w, http.StatusOK, listResponse(store.MerchantList, page))
}

// CreateMerchant handles POST /api/merchants.
func (h *Handler) CreateMerchant(w http.ResponseWriter, r *http.Request) {
	var req merchantRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, err, "Failed to create merchant", "")
		return
	}
	if req.BusinessName == "" || req.ContactName == "" || req.Email == "" {
		webcore.Error(w, http.StatusBadRequest, "Business name, contact name, and email are required")
		return
	}
	if req.ProcessingFeeRate.Valid && req.ProcessingFeeRate.Decimal.IsNegative() {
		webcore.ValidationError(w, "Validation failed", map[string]string{"processing_fee_rate": "must not be negative"})
		return
	}

	m, err := h.db.CreateMerchant(r.Context(), store.Merchant{
		BusinessName:           req.BusinessName,
		ContactName:            req.ContactName,
		Email:                  req.Email,
		Phone:                  req.Phone,
		BusinessType:           req.BusinessType,
		Website:                req.Website,
		Address:                req.Address,
		City:                   req.City,
		State:                  req.State,
		ZipCode:                req.ZipCode,
		Country:                req.Country,
		MonthlyProcessingLimit: req.MonthlyProcessingLimit.NullDecimal,
		ProcessingFeeRate:      req.ProcessingFeeRate.NullDecimal,
		IsLoyalMerchant:        req.IsLoyalMerchant,
	})
	if errors.Is(err, store.ErrConflict) {
		webcore.Error(w, http.StatusConflict, "Email already exists")
		return
	}
	if err != nil {
		h.fail(w, err, "Failed to create merchant", "")
		return
	}
	webcore.JSON(w, http.StatusCreated, m)
}

// GetMerchant handles GET /api/merchants/{id}.
func (h *Handler) GetMerchant(w http.ResponseWriter, r *http.Request) {
	m, err := h.db.MerchantByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err, "Failed to fetch merchant", "Merchant not found")
		return
	}
	webcore.JSON(w, http.StatusOK, m)
}

// UpdateMerchant handles PUT /api/merchants/{id}. A status change emits
// merchant.status_changed.
func (h *Handler) UpdateMerchant(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err, "Failed to update merchant", "")
		return
	}
	set, err := store.MerchantUpdate.Coerce(body)
	if errors.Is(err, query.ErrNoFields) {
		webcore.Error(w, http.StatusBadRequest, "No valid fields to update")
		return
	}
	if err != nil {
		h.fail(w, err, "Failed to update merchant", "")
		return
	}

	before, after, err := h.db.UpdateMerchant(r.Context(), chi.URLParam(r, "id"), set)
	if errors.Is(err, store.ErrConflict) {
		webcore.Error(w, http.StatusConflict, "Email already exists")
		return
	}
	if err != nil {
		h.fail(w, err, "Failed to update merchant", "Merchant not found")
		return
	}

	if before.Status != after.Status {
		h.publish(notify.MerchantStatusChanged, map[string]any{
			"merchant_id":     after.ID,
			"previous_status": before.Status,
			"status":          after.Status,
			"merchant":        after,
		})
	}
	webcore.JSON(w, http.StatusOK, after)
}
