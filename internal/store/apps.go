package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paydesk/paydesk/internal/query"
)

var appColumnList = []string{
	"id", "app_name", "app_type", "description", "version", "status", "is_free_version",
	"revenue_rate", "total_downloads", "active_users", "created_at", "updated_at",
}

var appColumns = strings.Join(appColumnList, ", ")

var appTransactionColumnList = []string{
	"id", "app_id", "transaction_amount", "revenue_rate", "our_revenue", "transaction_type",
	"transaction_status", "reference_number", "user_email", "description", "device_info",
	"app_version", "is_free_version_transaction", "processed_at", "created_at",
}

var appTransactionColumns = strings.Join(appTransactionColumnList, ", ")

// AppUpdate is the allow-list for mobile application edits.
var AppUpdate = &query.Update{
	Table: "mobile_applications",
	Key:   "id",
	Columns: []query.Column{
		{Name: "app_name", Kind: query.Text},
		{Name: "app_type", Kind: query.Text},
		{Name: "description", Kind: query.Text, Nullable: true},
		{Name: "version", Kind: query.Text, Nullable: true},
		{Name: "status", Kind: query.Enum, Values: AppStatuses},
		{Name: "is_free_version", Kind: query.Bool},
		{Name: "revenue_rate", Kind: query.Decimal},
		{Name: "total_downloads", Kind: query.Int},
		{Name: "active_users", Kind: query.Int},
	},
}

// RecentAppWindow is the span counted by recent_transactions_count.
const RecentAppWindow = 7 * 24 * time.Hour

func appDest(a *MobileApp) []any {
	return []any{&a.ID, &a.AppName, &a.AppType, &a.Description, &a.Version, &a.Status, &a.IsFreeVersion,
		&a.RevenueRate, &a.TotalDownloads, &a.ActiveUsers, &a.CreatedAt, &a.UpdatedAt}
}

func scanApp(s scanner) (MobileApp, error) {
	var a MobileApp
	err := s.Scan(appDest(&a)...)
	return a, err
}

func appTransactionDest(t *AppTransaction) []any {
	return []any{&t.ID, &t.AppID, &t.TransactionAmount, &t.RevenueRate, &t.OurRevenue, &t.TransactionType,
		&t.TransactionStatus, &t.ReferenceNumber, &t.UserEmail, &t.Description, &t.DeviceInfo,
		&t.AppVersion, &t.IsFreeVersionTransaction, &t.ProcessedAt, &t.CreatedAt}
}

func scanAppTransaction(s scanner) (AppTransaction, error) {
	var t AppTransaction
	err := s.Scan(appTransactionDest(&t)...)
	return t, err
}

func scanAppTransactionRow(s scanner) (AppTransaction, error) {
	var t AppTransaction
	dest := append(appTransactionDest(&t), &t.AppName, &t.AppType, &t.AppHasFreeVersion)
	err := s.Scan(dest...)
	return t, err
}

// CreateApp inserts a mobile application.
func (db *DB) CreateApp(ctx context.Context, a MobileApp) (MobileApp, error) {
	now := db.now()
	a.ID = newID()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Status == "" {
		a.Status = DefaultAppStatus
	}
	if a.RevenueRate.IsZero() {
		a.RevenueRate = DefaultAppRevenueRate
	}
	_, err := db.exec(ctx,
		`INSERT INTO mobile_applications (`+appColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AppName, a.AppType, a.Description, a.Version, a.Status, a.IsFreeVersion,
		a.RevenueRate, a.TotalDownloads, a.ActiveUsers, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return MobileApp{}, fmt.Errorf("create app: %w", err)
	}
	return a, nil
}

// AppByID returns one mobile application.
func (db *DB) AppByID(ctx context.Context, id string) (MobileApp, error) {
	a, err := scanApp(db.queryRow(ctx, `SELECT `+appColumns+` FROM mobile_applications WHERE id = ?`, id))
	if err != nil {
		return MobileApp{}, notFound(err, "mobile application")
	}
	return a, nil
}

// UpdateApp applies set and returns the updated application.
func (db *DB) UpdateApp(ctx context.Context, id string, set []query.Assignment) (MobileApp, error) {
	set = append(set, query.Assignment{Column: "updated_at", Value: db.now()})
	q, args, err := AppUpdate.Build(db.dialect, set, id)
	if err != nil {
		return MobileApp{}, err
	}
	res, err := db.exec(ctx, q, args...)
	if err != nil {
		return MobileApp{}, fmt.Errorf("update app: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return MobileApp{}, fmt.Errorf("mobile application: %w", ErrNotFound)
	}
	return db.AppByID(ctx, id)
}

// ListApps returns every application, newest first, with transaction
// aggregates and its five latest transactions. status filters when set.
func (db *DB) ListApps(ctx context.Context, status string) ([]AppSummary, error) {
	recentSince := db.now().Add(-RecentAppWindow)
	q := `SELECT ` + strings.Join(prefixed("ma", appColumnList), ", ") + `,
			COUNT(at.id),
			COALESCE(SUM(at.transaction_amount), 0),
			COALESCE(SUM(at.our_revenue), 0),
			COUNT(CASE WHEN at.is_free_version_transaction = TRUE THEN 1 END),
			COUNT(CASE WHEN at.processed_at >= ? THEN 1 END)
		FROM mobile_applications ma
		LEFT JOIN app_transactions at ON ma.id = at.app_id`
	args := []any{recentSince}
	if status != "" {
		q += ` WHERE ma.status = ?`
		args = append(args, status)
	}
	q += ` GROUP BY ` + strings.Join(prefixed("ma", appColumnList), ", ") + `
		ORDER BY ma.created_at DESC, ma.id DESC`

	rows, err := db.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	apps := []AppSummary{}
	for rows.Next() {
		var s AppSummary
		var volume, revenue decimal.NullDecimal
		dest := append(appDest(&s.MobileApp), &s.TotalTransactions, &volume, &revenue,
			&s.FreeVersionTransactions, &s.RecentTransactionsCount)
		if err := rows.Scan(dest...); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan app: %w", err)
		}
		s.TotalRevenueAmount = volume.Decimal
		s.TotalOurRevenue = revenue.Decimal
		apps = append(apps, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range apps {
		recent, err := db.recentAppTransactions(ctx, apps[i].ID, 5)
		if err != nil {
			return nil, err
		}
		apps[i].RecentTransactions = recent
	}
	return apps, nil
}

func (db *DB) recentAppTransactions(ctx context.Context, appID string, limit int) ([]AppTransaction, error) {
	rows, err := db.query(ctx,
		`SELECT `+appTransactionColumns+` FROM app_transactions
		 WHERE app_id = ? ORDER BY processed_at DESC, id DESC LIMIT ?`, appID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent app transactions: %w", err)
	}
	defer rows.Close()
	out := []AppTransaction{}
	for rows.Next() {
		t, err := scanAppTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AppRevenue returns the platform revenue for amount at rate.
func AppRevenue(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

// CreateAppTransaction records an app transaction. The revenue rate is
// copied from the application at creation; client values are ignored.
func (db *DB) CreateAppTransaction(ctx context.Context, t AppTransaction) (AppTransaction, error) {
	var rate decimal.NullDecimal
	if err := db.queryRow(ctx, `SELECT revenue_rate FROM mobile_applications WHERE id = ?`, t.AppID).Scan(&rate); err != nil {
		return AppTransaction{}, notFound(err, "mobile application")
	}
	if !rate.Valid || rate.Decimal.IsZero() {
		rate = decimal.NewNullDecimal(DefaultAppRevenueRate)
	}

	now := db.now()
	t.ID = newID()
	t.TransactionAmount = t.TransactionAmount.Round(2)
	t.RevenueRate = rate.Decimal
	t.OurRevenue = AppRevenue(t.TransactionAmount, t.RevenueRate)
	if t.TransactionType == "" {
		t.TransactionType = DefaultAppTxType
	}
	if t.TransactionStatus == "" {
		t.TransactionStatus = DefaultTransactionStatus
	}
	if t.ProcessedAt.IsZero() {
		t.ProcessedAt = now
	}
	t.CreatedAt = now

	_, err := db.exec(ctx,
		`INSERT INTO app_transactions (`+appTransactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AppID, t.TransactionAmount, t.RevenueRate, t.OurRevenue, t.TransactionType,
		t.TransactionStatus, t.ReferenceNumber, t.UserEmail, t.Description, t.DeviceInfo,
		t.AppVersion, t.IsFreeVersionTransaction, t.ProcessedAt, t.CreatedAt)
	if err != nil {
		return AppTransaction{}, fmt.Errorf("create app transaction: %w", err)
	}
	return t, nil
}

// ListAppTransactions returns one filtered page with analytics.
func (db *DB) ListAppTransactions(ctx context.Context, p query.Params) (Page[AppTransaction], error) {
	return list(ctx, db, AppTransactionList, p, scanAppTransactionRow)
}
