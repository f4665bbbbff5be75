package store

import (
	"context"
	"fmt"
	"strings"
)

// schema is written once with type tokens that each dialect replaces.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'admin',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login @TS,
		created_at @TS NOT NULL,
		updated_at @TS NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS merchants (
		id TEXT PRIMARY KEY,
		business_name TEXT NOT NULL,
		contact_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		business_type TEXT,
		website TEXT,
		address TEXT,
		city TEXT,
		state TEXT,
		zip_code TEXT,
		country TEXT NOT NULL DEFAULT 'US',
		status TEXT NOT NULL DEFAULT 'pending',
		onboarding_step INTEGER NOT NULL DEFAULT 1,
		monthly_processing_limit NUMERIC(14,2),
		processing_fee_rate NUMERIC(7,4) DEFAULT 0.0290,
		is_loyal_merchant BOOLEAN NOT NULL DEFAULT FALSE,
		loyal_since @TS,
		approved_at @TS,
		created_at @TS NOT NULL,
		updated_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_merchants_created_at ON merchants(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_merchants_status ON merchants(status)`,

	`CREATE TABLE IF NOT EXISTS processing_transactions (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL REFERENCES merchants(id),
		transaction_amount NUMERIC(14,2) NOT NULL,
		transaction_fee NUMERIC(14,2) NOT NULL DEFAULT 0,
		our_revenue NUMERIC(14,2) NOT NULL DEFAULT 0,
		transaction_type TEXT NOT NULL DEFAULT 'payment',
		transaction_status TEXT NOT NULL DEFAULT 'completed',
		reference_number TEXT,
		customer_email TEXT,
		description TEXT,
		is_cash_transaction BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at @TS NOT NULL,
		created_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_merchant_id ON processing_transactions(merchant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_processed_at ON processing_transactions(processed_at)`,

	`CREATE TABLE IF NOT EXISTS mobile_applications (
		id TEXT PRIMARY KEY,
		app_name TEXT NOT NULL,
		app_type TEXT NOT NULL,
		description TEXT,
		version TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		is_free_version BOOLEAN NOT NULL DEFAULT FALSE,
		revenue_rate NUMERIC(7,4) NOT NULL DEFAULT 0.0020,
		total_downloads INTEGER NOT NULL DEFAULT 0,
		active_users INTEGER NOT NULL DEFAULT 0,
		created_at @TS NOT NULL,
		updated_at @TS NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS app_transactions (
		id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL REFERENCES mobile_applications(id),
		transaction_amount NUMERIC(14,2) NOT NULL,
		revenue_rate NUMERIC(7,4) NOT NULL,
		our_revenue NUMERIC(14,2) NOT NULL DEFAULT 0,
		transaction_type TEXT NOT NULL DEFAULT 'app_payment',
		transaction_status TEXT NOT NULL DEFAULT 'completed',
		reference_number TEXT,
		user_email TEXT,
		description TEXT,
		device_info @JSON,
		app_version TEXT,
		is_free_version_transaction BOOLEAN NOT NULL DEFAULT FALSE,
		processed_at @TS NOT NULL,
		created_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_app_transactions_app_id ON app_transactions(app_id)`,
	`CREATE INDEX IF NOT EXISTS idx_app_transactions_processed_at ON app_transactions(processed_at)`,

	`CREATE TABLE IF NOT EXISTS support_tickets (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL REFERENCES merchants(id),
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'open',
		category TEXT,
		assigned_to TEXT,
		resolved_at @TS,
		created_at @TS NOT NULL,
		updated_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_support_tickets_merchant_id ON support_tickets(merchant_id)`,
	`CREATE INDEX IF NOT EXISTS idx_support_tickets_created_at ON support_tickets(created_at)`,

	`CREATE TABLE IF NOT EXISTS support_responses (
		id TEXT PRIMARY KEY,
		ticket_id TEXT NOT NULL REFERENCES support_tickets(id) ON DELETE CASCADE,
		response_text TEXT NOT NULL,
		is_staff_response BOOLEAN NOT NULL DEFAULT FALSE,
		responder_name TEXT,
		responder_email TEXT,
		created_at @TS NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_support_responses_ticket_id ON support_responses(ticket_id)`,
}

func (db *DB) ddl() []string {
	r := strings.NewReplacer("@TS", "TIMESTAMP", "@JSON", "TEXT")
	if db.dialect.Name() == DriverPostgres {
		r = strings.NewReplacer("@TS", "TIMESTAMPTZ", "@JSON", "JSONB")
	}
	out := make([]string, len(schema))
	for i, s := range schema {
		out[i] = r.Replace(s)
	}
	return out
}

// Migrate creates any missing tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range db.ddl() {
		if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
