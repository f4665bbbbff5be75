package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paydesk/paydesk/internal/stats"
)

var _ stats.Source = (*DB)(nil)

// money scans a nullable numeric aggregate as a float.
type money struct{ sql.NullFloat64 }

func (m money) v() float64 { return m.Float64 }

func (db *DB) MerchantStats(ctx context.Context, since time.Time) (stats.MerchantStats, error) {
	var s stats.MerchantStats
	err := db.queryRow(ctx, `SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'active' THEN 1 END),
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'under_review' THEN 1 END),
			COUNT(CASE WHEN is_loyal_merchant = TRUE THEN 1 END),
			COUNT(CASE WHEN created_at >= ? THEN 1 END)
		FROM merchants`, since).
		Scan(&s.TotalMerchants, &s.ActiveMerchants, &s.PendingMerchants,
			&s.UnderReviewMerchants, &s.LoyalMerchants, &s.NewMerchants)
	if err != nil {
		return stats.MerchantStats{}, fmt.Errorf("merchant stats: %w", err)
	}
	return s, nil
}

func (db *DB) TransactionStats(ctx context.Context, since time.Time) (stats.TransactionStats, error) {
	var s stats.TransactionStats
	var volume, fees, revenue, recentVolume, recentRevenue money
	err := db.queryRow(ctx, `SELECT
			COUNT(*),
			SUM(transaction_amount),
			SUM(transaction_fee),
			SUM(our_revenue),
			COUNT(CASE WHEN processed_at >= ? THEN 1 END),
			SUM(CASE WHEN processed_at >= ? THEN transaction_amount ELSE 0 END),
			SUM(CASE WHEN processed_at >= ? THEN our_revenue ELSE 0 END),
			COUNT(CASE WHEN is_cash_transaction = FALSE THEN 1 END),
			COUNT(CASE WHEN is_cash_transaction = TRUE THEN 1 END)
		FROM processing_transactions`, since, since, since).
		Scan(&s.TotalTransactions, &volume, &fees, &revenue, &s.RecentTransactions,
			&recentVolume, &recentRevenue, &s.NonCashTransactions, &s.CashTransactions)
	if err != nil {
		return stats.TransactionStats{}, fmt.Errorf("transaction stats: %w", err)
	}
	s.TotalVolume, s.TotalFees, s.TotalRevenue = volume.v(), fees.v(), revenue.v()
	s.RecentVolume, s.RecentRevenue = recentVolume.v(), recentRevenue.v()
	return s, nil
}

func (db *DB) SupportStats(ctx context.Context) (stats.SupportStats, error) {
	var s stats.SupportStats
	err := db.queryRow(ctx, `SELECT
			COUNT(CASE WHEN status IN ('open', 'in_progress') THEN 1 END),
			COUNT(CASE WHEN priority = 'high' AND status IN ('open', 'in_progress') THEN 1 END),
			COUNT(CASE WHEN status = 'resolved' THEN 1 END)
		FROM support_tickets`).
		Scan(&s.OpenTickets, &s.HighPriorityOpen, &s.ResolvedTickets)
	if err != nil {
		return stats.SupportStats{}, fmt.Errorf("support stats: %w", err)
	}
	return s, nil
}

func (db *DB) MobileAppStats(ctx context.Context) (stats.MobileAppStats, error) {
	var s stats.MobileAppStats
	var downloads, users money
	err := db.queryRow(ctx, `SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'active' THEN 1 END),
			SUM(total_downloads),
			SUM(active_users),
			COUNT(CASE WHEN is_free_version = TRUE THEN 1 END)
		FROM mobile_applications`).
		Scan(&s.TotalApps, &s.ActiveApps, &downloads, &users, &s.AppsWithFreeVersion)
	if err != nil {
		return stats.MobileAppStats{}, fmt.Errorf("mobile app stats: %w", err)
	}
	s.TotalDownloads, s.TotalActiveUsers = int64(downloads.v()), int64(users.v())
	return s, nil
}

func (db *DB) AppTransactionStats(ctx context.Context, since time.Time) (stats.AppTransactionStats, error) {
	var s stats.AppTransactionStats
	var volume, revenue, recentVolume, recentRevenue money
	err := db.queryRow(ctx, `SELECT
			COUNT(*),
			SUM(transaction_amount),
			SUM(our_revenue),
			COUNT(CASE WHEN processed_at >= ? THEN 1 END),
			SUM(CASE WHEN processed_at >= ? THEN transaction_amount ELSE 0 END),
			SUM(CASE WHEN processed_at >= ? THEN our_revenue ELSE 0 END),
			COUNT(CASE WHEN is_free_version_transaction = TRUE THEN 1 END),
			COUNT(CASE WHEN is_free_version_transaction = FALSE THEN 1 END)
		FROM app_transactions`, since, since, since).
		Scan(&s.TotalAppTransactions, &volume, &revenue, &s.RecentAppTransactions,
			&recentVolume, &recentRevenue, &s.FreeVersionTransactions, &s.PremiumTransactions)
	if err != nil {
		return stats.AppTransactionStats{}, fmt.Errorf("app transaction stats: %w", err)
	}
	s.TotalAppVolume, s.TotalAppRevenue = volume.v(), revenue.v()
	s.RecentAppVolume, s.RecentAppRevenue = recentVolume.v(), recentRevenue.v()
	return s, nil
}

func (db *DB) RevenueBreakdown(ctx context.Context, since time.Time) (stats.RevenueStats, error) {
	var s stats.RevenueStats
	var nonCash, cash money
	err := db.queryRow(ctx, `SELECT
			SUM(CASE WHEN is_cash_transaction = FALSE THEN our_revenue ELSE 0 END),
			SUM(CASE WHEN is_cash_transaction = TRUE THEN our_revenue ELSE 0 END),
			COUNT(CASE WHEN is_cash_transaction = FALSE THEN 1 END),
			COUNT(CASE WHEN is_cash_transaction = TRUE THEN 1 END)
		FROM processing_transactions
		WHERE processed_at >= ?`, since).
		Scan(&nonCash, &cash, &s.NonCashCount, &s.CashCount)
	if err != nil {
		return stats.RevenueStats{}, fmt.Errorf("revenue breakdown: %w", err)
	}
	s.NonCashRevenue, s.CashRevenue = nonCash.v(), cash.v()
	return s, nil
}

func (db *DB) DailyVolume(ctx context.Context, since time.Time) ([]stats.DailyVolume, error) {
	day := db.dialect.Day("processed_at")
	rows, err := db.query(ctx, `SELECT `+day+`, SUM(transaction_amount), SUM(our_revenue), COUNT(*)
		FROM processing_transactions
		WHERE processed_at >= ?
		GROUP BY `+day+`
		ORDER BY 1 ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("daily volume: %w", err)
	}
	defer rows.Close()
	out := []stats.DailyVolume{}
	for rows.Next() {
		var d stats.DailyVolume
		var volume, revenue money
		if err := rows.Scan(&d.Date, &volume, &revenue, &d.DailyTransactions); err != nil {
			return nil, err
		}
		d.DailyVolume, d.DailyRevenue = volume.v(), revenue.v()
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) TopMerchants(ctx context.Context, since time.Time, limit int) ([]stats.TopMerchant, error) {
	rows, err := db.query(ctx, `SELECT m.business_name, m.is_loyal_merchant,
			SUM(pt.transaction_amount) AS total_volume, SUM(pt.our_revenue), COUNT(pt.id)
		FROM merchants m
		JOIN processing_transactions pt ON m.id = pt.merchant_id
		WHERE pt.processed_at >= ?
		GROUP BY m.id, m.business_name, m.is_loyal_merchant
		ORDER BY total_volume DESC, m.id ASC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("top merchants: %w", err)
	}
	defer rows.Close()
	out := []stats.TopMerchant{}
	for rows.Next() {
		var m stats.TopMerchant
		var volume, revenue money
		if err := rows.Scan(&m.BusinessName, &m.IsLoyalMerchant, &volume, &revenue, &m.TransactionCount); err != nil {
			return nil, err
		}
		m.TotalVolume, m.TotalRevenue = volume.v(), revenue.v()
		out = append(out, m)
	}
	return out, rows.Err()
}

// TopApps ranks applications by recent volume; apps without recent
// transactions sort last.
func (db *DB) TopApps(ctx context.Context, since time.Time, limit int) ([]stats.TopApp, error) {
	rows, err := db.query(ctx, `SELECT ma.app_name, ma.app_type, ma.is_free_version,
			COALESCE(SUM(at.transaction_amount), 0) AS total_volume, SUM(at.our_revenue), COUNT(at.id)
		FROM mobile_applications ma
		LEFT JOIN app_transactions at ON ma.id = at.app_id AND at.processed_at >= ?
		GROUP BY ma.id, ma.app_name, ma.app_type, ma.is_free_version
		ORDER BY total_volume DESC, ma.id ASC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("top apps: %w", err)
	}
	defer rows.Close()
	out := []stats.TopApp{}
	for rows.Next() {
		var a stats.TopApp
		var volume, revenue money
		if err := rows.Scan(&a.AppName, &a.AppType, &a.IsFreeVersion, &volume, &revenue, &a.TransactionCount); err != nil {
			return nil, err
		}
		a.TotalVolume, a.TotalRevenue = volume.v(), revenue.v()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) RecentTickets(ctx context.Context, limit int) ([]stats.RecentTicket, error) {
	rows, err := db.query(ctx, `SELECT st.id, st.subject, st.priority, st.status, st.created_at,
			m.business_name, m.contact_name, m.is_loyal_merchant
		FROM support_tickets st
		JOIN merchants m ON st.merchant_id = m.id
		ORDER BY st.created_at DESC, st.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent tickets: %w", err)
	}
	defer rows.Close()
	out := []stats.RecentTicket{}
	for rows.Next() {
		var t stats.RecentTicket
		if err := rows.Scan(&t.ID, &t.Subject, &t.Priority, &t.Status, &t.CreatedAt,
			&t.BusinessName, &t.ContactName, &t.IsLoyalMerchant); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
