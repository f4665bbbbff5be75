package api

import (
	"net/http"

	"github.com/paydesk/paydesk/internal/notify"
	"github.com/paydesk/paydesk/internal/query"
	"github.com/paydesk/paydesk/internal/store"
	"github.com/paydesk/paydesk/pkg/webcore"
)

// transactionRequest is the create body. Fee and revenue fields a client
// sends are not decoded; the server computes them.
type transactionRequest struct {
	MerchantID        string  `json:"merchant_id"`
	TransactionAmount *amount `json:"transaction_amount"`
	TransactionType   string  `json:"transaction_type"`
	TransactionStatus string  `json:"transaction_status"`
	ReferenceNumber   *string `json:"reference_number"`
	CustomerEmail     *string `json:"customer_email"`
	Description       *string `json:"description"`
	IsCashTransaction bool    `json:"is_cash_transaction"`
}

// ListTransactions handles GET /api/transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := store.TransactionList.Parse(r.URL.Query())
	if err != nil {
		h.fail(w, err, "Failed to fetch transactions", "")
		return
	}
	page, err := h.db.ListTransactions(r.Context(), p)
	if err != nil {
		h.fail(w, err, "Failed to fetch transactions", "")
		return
	}
	webcore.JSON(w, http.StatusOK, listResponse(store.TransactionList, page))
}

// CreateTransaction handles POST /api/transactions. The fee is computed
// from the merchant's current rate and frozen on the row.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, err, "Failed to create transaction", "")
		return
	}
	if req.MerchantID == "" || req.TransactionAmount == nil || req.TransactionAmount.IsZero() {
		webcore.Error(w, http.StatusBadRequest, "Merchant ID and transaction amount are required")
		return
	}
	errs := query.FieldErrors{}
	enum(errs, "transaction_type", req.TransactionType, store.TransactionTypes)
	enum(errs, "transaction_status", req.TransactionStatus, store.TransactionStatuses)
	if len(errs) > 0 {
		webcore.ValidationError(w, "Validation failed", errs)
		return
	}

	t, err := h.db.CreateTransaction(r.Context(), store.Transaction{
		MerchantID:        req.MerchantID,
		TransactionAmount: req.TransactionAmount.Decimal,
		TransactionType:   req.TransactionType,
		TransactionStatus: req.TransactionStatus,
		ReferenceNumber:   req.ReferenceNumber,
		CustomerEmail:     req.CustomerEmail,
		Description:       req.Description,
		IsCashTransaction: req.IsCashTransaction,
	})
	if err != nil {
		h.fail(w, err, "Failed to create transaction", "Merchant not found")
		return
	}

	h.publish(notify.TransactionCreated, t)
	webcore.JSON(w, http.StatusCreated, t)
}
