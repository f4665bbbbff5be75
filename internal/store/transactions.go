package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paydesk/paydesk/internal/query"
)

var transactionColumnList = []string{
	"id", "merchant_id", "transaction_amount", "transaction_fee", "our_revenue",
	"transaction_type", "transaction_status", "reference_number", "customer_email",
	"description", "is_cash_transaction", "processed_at", "created_at",
}

var transactionColumns = strings.Join(transactionColumnList, ", ")

func transactionDest(t *Transaction) []any {
	return []any{&t.ID, &t.MerchantID, &t.TransactionAmount, &t.TransactionFee, &t.OurRevenue,
		&t.TransactionType, &t.TransactionStatus, &t.ReferenceNumber, &t.CustomerEmail,
		&t.Description, &t.IsCashTransaction, &t.ProcessedAt, &t.CreatedAt}
}

func scanTransaction(s scanner) (Transaction, error) {
	var t Transaction
	err := s.Scan(transactionDest(&t)...)
	return t, err
}

func scanTransactionRow(s scanner) (Transaction, error) {
	var t Transaction
	dest := append(transactionDest(&t), &t.BusinessName, &t.ContactName, &t.IsLoyalMerchant)
	err := s.Scan(dest...)
	return t, err
}

// ProcessingFee returns the fee and platform revenue for amount at rate.
// Cash transactions carry a fee but earn the platform nothing.
func ProcessingFee(amount, rate decimal.Decimal, cash bool) (fee, revenue decimal.Decimal) {
	fee = amount.Mul(rate).Round(2)
	if cash {
		return fee, decimal.Zero
	}
	return fee, fee
}

// CreateTransaction records a processing transaction. The merchant's fee
// rate is read first and the fee computed from it; the insert is a
// separate statement, so a rate changed in between is not observed.
// Client-supplied fee or revenue values are never used.
func (db *DB) CreateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	rate, err := db.MerchantFeeRate(ctx, t.MerchantID)
	if err != nil {
		return Transaction{}, err
	}

	now := db.now()
	t.ID = newID()
	t.TransactionAmount = t.TransactionAmount.Round(2)
	t.TransactionFee, t.OurRevenue = ProcessingFee(t.TransactionAmount, rate, t.IsCashTransaction)
	if t.TransactionType == "" {
		t.TransactionType = DefaultTransactionType
	}
	if t.TransactionStatus == "" {
		t.TransactionStatus = DefaultTransactionStatus
	}
	if t.ProcessedAt.IsZero() {
		t.ProcessedAt = now
	}
	t.CreatedAt = now

	_, err = db.exec(ctx,
		`INSERT INTO processing_transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MerchantID, t.TransactionAmount, t.TransactionFee, t.OurRevenue,
		t.TransactionType, t.TransactionStatus, t.ReferenceNumber, t.CustomerEmail,
		t.Description, t.IsCashTransaction, t.ProcessedAt, t.CreatedAt)
	if err != nil {
		return Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

// TransactionByID returns one transaction without merchant fields.
func (db *DB) TransactionByID(ctx context.Context, id string) (Transaction, error) {
	t, err := scanTransaction(db.queryRow(ctx,
		`SELECT `+transactionColumns+` FROM processing_transactions WHERE id = ?`, id))
	if err != nil {
		return Transaction{}, notFound(err, "transaction")
	}
	return t, nil
}

// ListTransactions returns one filtered page with analytics.
func (db *DB) ListTransactions(ctx context.Context, p query.Params) (Page[Transaction], error) {
	return list(ctx, db, TransactionList, p, scanTransactionRow)
}
