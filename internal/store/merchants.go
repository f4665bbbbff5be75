package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paydesk/paydesk/internal/query"
)

var merchantColumnList = []string{
	"id", "business_name", "contact_name", "email", "phone", "business_type",
	"website", "address", "city", "state", "zip_code", "country", "status",
	"onboarding_step", "monthly_processing_limit", "processing_fee_rate",
	"is_loyal_merchant", "loyal_since", "approved_at", "created_at", "updated_at",
}

var merchantColumns = strings.Join(merchantColumnList, ", ")

// MerchantUpdate is the allow-list for merchant edits.
var MerchantUpdate = &query.Update{
	Table: "merchants",
	Key:   "id",
	Columns: []query.Column{
		{Name: "business_name", Kind: query.Text},
		{Name: "contact_name", Kind: query.Text},
		{Name: "email", Kind: query.Text},
		{Name: "phone", Kind: query.Text, Nullable: true},
		{Name: "business_type", Kind: query.Text, Nullable: true},
		{Name: "website", Kind: query.Text, Nullable: true},
		{Name: "address", Kind: query.Text, Nullable: true},
		{Name: "city", Kind: query.Text, Nullable: true},
		{Name: "state", Kind: query.Text, Nullable: true},
		{Name: "zip_code", Kind: query.Text, Nullable: true},
		{Name: "country", Kind: query.Text},
		{Name: "status", Kind: query.Enum, Values: MerchantStatuses},
		{Name: "onboarding_step", Kind: query.Int},
		{Name: "monthly_processing_limit", Kind: query.Decimal, Nullable: true},
		{Name: "processing_fee_rate", Kind: query.Decimal},
		{Name: "is_loyal_merchant", Kind: query.Bool},
		{Name: "approved_at", Kind: query.Timestamp, Nullable: true},
	},
}

func scanMerchant(s scanner) (Merchant, error) {
	var m Merchant
	err := s.Scan(&m.ID, &m.BusinessName, &m.ContactName, &m.Email, &m.Phone, &m.BusinessType,
		&m.Website, &m.Address, &m.City, &m.State, &m.ZipCode, &m.Country, &m.Status,
		&m.OnboardingStep, &m.MonthlyProcessingLimit, &m.ProcessingFeeRate,
		&m.IsLoyalMerchant, &m.LoyalSince, &m.ApprovedAt, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// CreateMerchant inserts m, filling defaults for country, status,
// onboarding step and fee rate.
func (db *DB) CreateMerchant(ctx context.Context, m Merchant) (Merchant, error) {
	now := db.now()
	m.ID = newID()
	m.CreatedAt, m.UpdatedAt = now, now
	if m.Country == "" {
		m.Country = DefaultCountry
	}
	if m.Status == "" {
		m.Status = DefaultMerchantStatus
	}
	if m.OnboardingStep == 0 {
		m.OnboardingStep = 1
	}
	if !m.ProcessingFeeRate.Valid {
		m.ProcessingFeeRate = decimal.NewNullDecimal(DefaultFeeRate)
	}
	if m.IsLoyalMerchant && m.LoyalSince == nil {
		m.LoyalSince = &now
	}

	_, err := db.exec(ctx,
		`INSERT INTO merchants (`+merchantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.BusinessName, m.ContactName, m.Email, m.Phone, m.BusinessType,
		m.Website, m.Address, m.City, m.State, m.ZipCode, m.Country, m.Status,
		m.OnboardingStep, m.MonthlyProcessingLimit, m.ProcessingFeeRate,
		m.IsLoyalMerchant, m.LoyalSince, m.ApprovedAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return Merchant{}, fmt.Errorf("create merchant: %w", err)
	}
	return m, nil
}

// MerchantByID returns one merchant.
func (db *DB) MerchantByID(ctx context.Context, id string) (Merchant, error) {
	m, err := scanMerchant(db.queryRow(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = ?`, id))
	if err != nil {
		return Merchant{}, notFound(err, "merchant")
	}
	return m, nil
}

// MerchantFeeRate reads the merchant's current processing rate.
func (db *DB) MerchantFeeRate(ctx context.Context, id string) (decimal.Decimal, error) {
	var rate decimal.NullDecimal
	if err := db.queryRow(ctx, `SELECT processing_fee_rate FROM merchants WHERE id = ?`, id).Scan(&rate); err != nil {
		return decimal.Zero, notFound(err, "merchant")
	}
	if !rate.Valid {
		return DefaultFeeRate, nil
	}
	return rate.Decimal, nil
}

// UpdateMerchant applies set to the merchant and returns the stored row
// before and after. Turning the loyalty flag on stamps loyal_since, and
// activating a merchant stamps approved_at unless the edit supplies it.
func (db *DB) UpdateMerchant(ctx context.Context, id string, set []query.Assignment) (before, after Merchant, err error) {
	before, err = db.MerchantByID(ctx, id)
	if err != nil {
		return Merchant{}, Merchant{}, err
	}
	now := db.now()

	if v, ok := query.Lookup(set, "is_loyal_merchant"); ok {
		switch {
		case v == true && !before.IsLoyalMerchant:
			set = append(set, query.Assignment{Column: "loyal_since", Value: now})
		case v == false:
			set = append(set, query.Assignment{Column: "loyal_since", Value: nil})
		}
	}
	if v, ok := query.Lookup(set, "status"); ok && v == "active" && before.Status != "active" {
		if _, given := query.Lookup(set, "approved_at"); !given {
			set = append(set, query.Assignment{Column: "approved_at", Value: now})
		}
	}
	set = append(set, query.Assignment{Column: "updated_at", Value: now})

	q, args, err := MerchantUpdate.Build(db.dialect, set, id)
	if err != nil {
		return Merchant{}, Merchant{}, err
	}
	res, err := db.exec(ctx, q, args...)
	if err != nil {
		return Merchant{}, Merchant{}, fmt.Errorf("update merchant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Merchant{}, Merchant{}, fmt.Errorf("merchant: %w", ErrNotFound)
	}
	after, err = db.MerchantByID(ctx, id)
	return before, after, err
}

// ListMerchants returns one filtered page of merchants.
func (db *DB) ListMerchants(ctx context.Context, p query.Params) (Page[Merchant], error) {
	return list(ctx, db, MerchantList, p, scanMerchant)
}
