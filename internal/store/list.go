package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paydesk/paydesk/internal/query"
)

// Page is one page of a filtered list with the matching total and, where
// the resource declares them, aggregates over the whole filtered set.
type Page[T any] struct {
	Rows       []T
	Pagination query.Pagination
	Analytics  map[string]any
}

// list runs the page, count and analytics statements for spec against a
// single predicate.
func list[T any](ctx context.Context, db *DB, spec *query.Spec, p query.Params, scan func(scanner) (T, error)) (Page[T], error) {
	pred := spec.Where(db.dialect, p)

	q, args := spec.PageQuery(db.dialect, pred, p.Limit, p.Offset)
	rows, err := db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return Page[T]{}, fmt.Errorf("list %s: %w", spec.Resource, err)
	}
	out := make([]T, 0, p.Limit)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			rows.Close()
			return Page[T]{}, fmt.Errorf("scan %s: %w", spec.Resource, err)
		}
		out = append(out, v)
	}
	if err := rows.Close(); err != nil {
		return Page[T]{}, err
	}
	if err := rows.Err(); err != nil {
		return Page[T]{}, err
	}

	var total int64
	q, args = spec.CountQuery(pred)
	if err := db.sql.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return Page[T]{}, fmt.Errorf("count %s: %w", spec.Resource, err)
	}

	page := Page[T]{
		Rows:       out,
		Pagination: query.NewPagination(total, p.Limit, p.Offset),
	}

	if q, args = spec.AnalyticsQuery(pred); q != "" {
		vals := make([]sql.NullFloat64, len(spec.Analytics))
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := db.sql.QueryRowContext(ctx, q, args...).Scan(dest...); err != nil {
			return Page[T]{}, fmt.Errorf("analytics %s: %w", spec.Resource, err)
		}
		floats := make([]float64, len(vals))
		for i, v := range vals {
			floats[i] = v.Float64
		}
		page.Analytics = spec.AnalyticsResult(floats)
	}
	return page, nil
}

// List specs for the four filtered resources.
var (
	MerchantList = &query.Spec{
		Resource:      "merchants",
		From:          "merchants",
		Columns:       merchantColumnList,
		SearchColumns: []string{"business_name", "contact_name", "email"},
		Filters: []query.Filter{
			{Param: "status", Column: "status"},
			{Param: "business_type", Column: "business_type"},
			{Param: "is_loyal_merchant", Column: "is_loyal_merchant", Kind: query.Flag},
		},
		TimeColumn: "created_at",
		IDColumn:   "id",
	}

	TransactionList = &query.Spec{
		Resource: "transactions",
		From:     "processing_transactions pt LEFT JOIN merchants m ON pt.merchant_id = m.id",
		Columns: append(prefixed("pt", transactionColumnList),
			"m.business_name", "m.contact_name", "m.is_loyal_merchant"),
		SearchColumns: []string{"pt.reference_number", "pt.customer_email", "m.business_name"},
		Filters: []query.Filter{
			{Param: "status", Column: "pt.transaction_status"},
			{Param: "merchant_id", Column: "pt.merchant_id"},
			{Param: "transaction_type", Column: "pt.transaction_type"},
			{Param: "is_cash_transaction", Column: "pt.is_cash_transaction", Kind: query.Flag},
		},
		TimeColumn: "pt.processed_at",
		IDColumn:   "pt.id",
		Analytics: []query.Aggregate{
			{Key: "total", Expr: "COUNT(*)"},
			{Key: "totalAmount", Expr: "COALESCE(SUM(pt.transaction_amount), 0)", Money: true},
			{Key: "totalFees", Expr: "COALESCE(SUM(pt.transaction_fee), 0)", Money: true},
			{Key: "totalRevenue", Expr: "COALESCE(SUM(pt.our_revenue), 0)", Money: true},
			{Key: "nonCashTransactions", Expr: "COUNT(CASE WHEN pt.is_cash_transaction = FALSE THEN 1 END)"},
			{Key: "cashTransactions", Expr: "COUNT(CASE WHEN pt.is_cash_transaction = TRUE THEN 1 END)"},
		},
	}

	AppTransactionList = &query.Spec{
		Resource: "transactions",
		From:     "app_transactions at LEFT JOIN mobile_applications ma ON at.app_id = ma.id",
		Columns: append(prefixed("at", appTransactionColumnList),
			"ma.app_name", "ma.app_type", "ma.is_free_version"),
		SearchColumns: []string{"at.reference_number", "at.user_email", "at.description", "ma.app_name"},
		Filters: []query.Filter{
			{Param: "app_id", Column: "at.app_id"},
			{Param: "transaction_type", Column: "at.transaction_type"},
			{Param: "status", Column: "at.transaction_status"},
			{Param: "free_version_only", Column: "at.is_free_version_transaction", Kind: query.OnlyTrue},
		},
		TimeColumn: "at.processed_at",
		IDColumn:   "at.id",
		Analytics: []query.Aggregate{
			{Key: "total", Expr: "COUNT(*)"},
			{Key: "totalAmount", Expr: "COALESCE(SUM(at.transaction_amount), 0)", Money: true},
			{Key: "totalRevenue", Expr: "COALESCE(SUM(at.our_revenue), 0)", Money: true},
			{Key: "freeVersionTransactions", Expr: "COUNT(CASE WHEN at.is_free_version_transaction = TRUE THEN 1 END)"},
			{Key: "premiumTransactions", Expr: "COUNT(CASE WHEN at.is_free_version_transaction = FALSE THEN 1 END)"},
		},
	}

	TicketList = &query.Spec{
		Resource: "tickets",
		From:     "support_tickets st LEFT JOIN merchants m ON st.merchant_id = m.id",
		Columns: append(prefixed("st", ticketColumnList),
			"m.business_name", "m.contact_name", "m.email"),
		SearchColumns: []string{"st.subject", "st.description", "m.business_name"},
		Filters: []query.Filter{
			{Param: "merchant_id", Column: "st.merchant_id"},
			{Param: "status", Column: "st.status"},
			{Param: "priority", Column: "st.priority"},
			{Param: "category", Column: "st.category"},
			{Param: "assigned_to", Column: "st.assigned_to"},
		},
		TimeColumn: "st.created_at",
		IDColumn:   "st.id",
	}
)

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}
