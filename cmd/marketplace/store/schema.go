package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// The DDL is limited to types and clauses both postgres and sqlite accept.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS suppliers (
		id TEXT PRIMARY KEY,
		business_name TEXT NOT NULL,
		contact_name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		review_count INTEGER NOT NULL DEFAULT 0,
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		products TEXT NOT NULL DEFAULT '[]',
		min_order DOUBLE PRECISION NOT NULL DEFAULT 0,
		max_delivery_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
		delivery_time TEXT NOT NULL DEFAULT '',
		payment_terms TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NULL,
		longitude DOUBLE PRECISION NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_suppliers_category ON suppliers (category)`,
	`CREATE INDEX IF NOT EXISTS idx_suppliers_city ON suppliers (city)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		user_type TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		business_name TEXT NULL,
		category TEXT NULL,
		description TEXT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		user_id TEXT NOT NULL,
		supplier_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, supplier_id)
	)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		vendor_id TEXT NOT NULL,
		supplier_id TEXT NOT NULL,
		start_date TIMESTAMP NOT NULL,
		loyalty_badge TEXT NOT NULL,
		total_orders INTEGER NOT NULL DEFAULT 0,
		total_spent DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_order_date TIMESTAMP NULL,
		PRIMARY KEY (vendor_id, supplier_id)
	)`,
}

// Migrate creates the marketplace tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Connect opens and pings a database for the given driver ("postgres" or "sqlite3").
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver == "sqlite3" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return db, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
