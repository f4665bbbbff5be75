package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/paydesk/paydesk/internal/query"
	"github.com/paydesk/paydesk/internal/store"
	"github.com/paydesk/paydesk/pkg/webcore"
)

type appRequest struct {
	AppName        string  `json:"app_name"`
	AppType        string  `json:"app_type"`
	Description    *string `json:"description"`
	Version        *string `json:"version"`
	Status         string  `json:"status"`
	RevenueRate    amount  `json:"revenue_rate"`
	IsFreeVersion  bool    `json:"is_free_version"`
	TotalDownloads int64   `json:"total_downloads"`
	ActiveUsers    int64   `json:"active_users"`
}

type appTransactionRequest struct {
	AppID                    string          `json:"app_id"`
	TransactionAmount        *amount         `json:"transaction_amount"`
	TransactionType          string          `json:"transaction_type"`
	TransactionStatus        string          `json:"transaction_status"`
	ReferenceNumber          *string         `json:"reference_number"`
	UserEmail                *string         `json:"user_email"`
	Description              *string         `json:"description"`
	DeviceInfo               json.RawMessage `json:"device_info"`
	AppVersion               *string         `json:"app_version"`
	IsFreeVersionTransaction bool            `json:"is_free_version_transaction"`
}

// ListApps handles GET /api/mobile-apps.
func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := h.db.ListApps(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, err, "Failed to fetch mobile applications", "")
		return
	}
	webcore.JSON(w, http.StatusOK, map[string]any{"apps": apps})
}

// CreateApp handles POST /api/mobile-apps.
func (h *Handler) CreateApp(w http.ResponseWriter, r *http.Request) {
	var req appRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, err, "Failed to create mobile application", "")
		return
	}
	if req.AppName == "" || req.AppType == "" {
		webcore.Error(w, http.StatusBadRequest, "App name and type are required")
		return
	}
	errs := query.FieldErrors{}
	enum(errs, "status", req.Status, store.AppStatuses)
	if req.RevenueRate.IsNegative() {
		errs["revenue_rate"] = "must not be negative"
	}
	if len(errs) > 0 {
		webcore.ValidationError(w, "Validation failed", errs)
		return
	}

	app, err := h.db.CreateApp(r.Context(), store.MobileApp{
		AppName:        req.AppName,
		AppType:        req.AppType,
		Description:    req.Description,
		Version:        req.Version,
		Status:         req.Status,
		RevenueRate:    req.RevenueRate.Decimal,
		IsFreeVersion:  req.IsFreeVersion,
		TotalDownloads: req.TotalDownloads,
		ActiveUsers:    req.ActiveUsers,
	})
	if err != nil {
		h.fail(w, err, "Failed to create mobile application", "")
		return
	}
	webcore.JSON(w, http.StatusCreated, app)
}

// UpdateApp handles PUT /api/mobile-apps. The application id travels in
// the body.
func (h *Handler) UpdateApp(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decode(w, r, &body); err != nil {
		h.fail(w, err, "Failed to update mobile application", "")
		return
	}
	id, _ := body["id"].(string)
	if id == "" {
		webcore.Error(w, http.StatusBadRequest, "App ID is required")
		return
	}
	delete(body, "id")

	set, err := store.AppUpdate.Coerce(body)
	if errors.Is(err, query.ErrNoFields) {
		webcore.Error(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if err != nil {
		h.fail(w, err, "Failed to update mobile application", "")
		return
	}
	app, err := h.db.UpdateApp(r.Context(), id, set)
	if err != nil {
		h.fail(w, err, "Failed to update mobile application", "Mobile application not found")
		return
	}
	webcore.JSON(w, http.StatusOK, app)
}

// ListAppTransactions handles GET /api/mobile-apps/transactions.
func (h *Handler) ListAppTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := store.AppTransactionList.Parse(r.URL.Query())
	if err != nil {
		h.fail(w, err, "Failed to fetch app transactions", "")
		return
	}
	page, err := h.db.ListAppTransactions(r.Context(), p)
	if err != nil {
		h.fail(w, err, "Failed to fetch app transactions", "")
		return
	}
	webcore.JSON(w, http.StatusOK, listResponse(store.AppTransactionList, page))
}

// CreateAppTransaction handles POST /api/mobile-apps/transactions. The
// revenue rate is taken from the application, never from the body.
func (h *Handler) CreateAppTransaction(w http.ResponseWriter, r *http.Request) {
	var req appTransactionRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, err, "Failed to create app transaction", "")
		return
	}
	if req.AppID == "" || req.TransactionAmount == nil || req.TransactionAmount.IsZero() {
		webcore.Error(w, http.StatusBadRequest, "App ID and transaction amount are required")
		return
	}
	errs := query.FieldErrors{}
	enum(errs, "transaction_status", req.TransactionStatus, store.TransactionStatuses)
	if len(errs) > 0 {
		webcore.ValidationError(w, "Validation failed", errs)
		return
	}

	var device store.JSONText
	if len(req.DeviceInfo) > 0 && string(req.DeviceInfo) != "null" {
		device = store.JSONText(req.DeviceInfo)
	}
	t, err := h.db.CreateAppTransaction(r.Context(), store.AppTransaction{
		AppID:                    req.AppID,
		TransactionAmount:        req.TransactionAmount.Decimal,
		TransactionType:          req.TransactionType,
		TransactionStatus:        req.TransactionStatus,
		ReferenceNumber:          req.ReferenceNumber,
		UserEmail:                req.UserEmail,
		Description:              req.Description,
		DeviceInfo:               device,
		AppVersion:               req.AppVersion,
		IsFreeVersionTransaction: req.IsFreeVersionTransaction,
	})
	if err != nil {
		h.fail(w, err, "Failed to create app transaction", "Mobile application not found")
		return
	}
	webcore.JSON(w, http.StatusCreated, t)
}
