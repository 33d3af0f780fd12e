package postgres

import (
	"context"
	"fmt"

	"github.com/saleswire/agentsync/internal/types"
)

// The schema is shared with the sales application: the engine owns
// agents.customers, agents.order_records (plus children), shared.products,
// shared.prices, the change-log tables, and system.sync_settings. It also
// creates agents.pending_orders and agents.fresis_history, which only the
// application writes. Timestamps are unix seconds; monetary amounts are
// decimal-as-string.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS agents`,
	`CREATE SCHEMA IF NOT EXISTS shared`,
	`CREATE SCHEMA IF NOT EXISTS system`,

	`CREATE TABLE IF NOT EXISTS agents.users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('agent', 'admin')),
		whitelisted BOOLEAN NOT NULL DEFAULT false,
		last_login BIGINT,
		last_customer_sync BIGINT,
		last_order_sync BIGINT,
		created_at BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS agents.customers (
		customer_profile TEXT NOT NULL,
		user_id TEXT NOT NULL,
		company_name TEXT NOT NULL DEFAULT '',
		vat_number TEXT NOT NULL DEFAULT '',
		fiscal_code TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		mobile TEXT NOT NULL DEFAULT '',
		fax TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		pec TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		contact_person TEXT NOT NULL DEFAULT '',
		customer_type TEXT NOT NULL DEFAULT '',
		sales_zone TEXT NOT NULL DEFAULT '',
		price_list TEXT NOT NULL DEFAULT '',
		discount_class TEXT NOT NULL DEFAULT '',
		payment_code TEXT NOT NULL DEFAULT '',
		payment_description TEXT NOT NULL DEFAULT '',
		iban TEXT NOT NULL DEFAULT '',
		sdi_code TEXT NOT NULL DEFAULT '',
		delivery_address TEXT NOT NULL DEFAULT '',
		delivery_city TEXT NOT NULL DEFAULT '',
		delivery_province TEXT NOT NULL DEFAULT '',
		delivery_postal_code TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		latitude TEXT NOT NULL DEFAULT '',
		longitude TEXT NOT NULL DEFAULT '',
		hash TEXT NOT NULL,
		last_sync BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (customer_profile, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS customers_user_zone ON agents.customers (user_id, sales_zone)`,

	`CREATE TABLE IF NOT EXISTS agents.order_records (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		order_number TEXT NOT NULL DEFAULT '',
		customer_profile TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		order_date BIGINT NOT NULL DEFAULT 0,
		sales_status TEXT NOT NULL DEFAULT '',
		document_status TEXT NOT NULL DEFAULT '',
		transfer_status TEXT NOT NULL DEFAULT '',
		total_amount TEXT NOT NULL DEFAULT '',
		taxable_amount TEXT NOT NULL DEFAULT '',
		vat_amount TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT '',
		agent_code TEXT NOT NULL DEFAULT '',
		warehouse_code TEXT NOT NULL DEFAULT '',
		ddt_number TEXT,
		ddt_date BIGINT,
		ddt_delivered_at BIGINT,
		ddt_carrier TEXT,
		invoice_number TEXT,
		invoice_date BIGINT,
		invoice_amount TEXT,
		invoice_paid BOOLEAN,
		current_state TEXT NOT NULL DEFAULT 'new',
		hash TEXT NOT NULL,
		last_sync BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS order_records_user_number ON agents.order_records (user_id, order_number)`,

	`CREATE TABLE IF NOT EXISTS agents.order_articles (
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		line_number INT NOT NULL,
		article_code TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL DEFAULT '',
		unit_price TEXT NOT NULL DEFAULT '',
		discount TEXT NOT NULL DEFAULT '',
		vat_rate TEXT NOT NULL DEFAULT '',
		total TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		PRIMARY KEY (order_id, user_id, line_number)
	)`,
	`CREATE INDEX IF NOT EXISTS order_articles_user_code ON agents.order_articles (user_id, article_code)`,

	`CREATE TABLE IF NOT EXISTS agents.order_state_history (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		old_state TEXT NOT NULL DEFAULT '',
		new_state TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		confidence REAL,
		source TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS order_state_history_order ON agents.order_state_history (user_id, order_id)`,

	`CREATE TABLE IF NOT EXISTS agents.pending_orders (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		customer_profile TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS agents.fresis_history (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		customer_profile TEXT NOT NULL DEFAULT '',
		article_code TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL DEFAULT '',
		sold_at BIGINT,
		created_at BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS shared.products (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		subcategory TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL DEFAULT '',
		vat TEXT NOT NULL DEFAULT '',
		ean TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		image_local_path TEXT NOT NULL DEFAULT '',
		available BOOLEAN NOT NULL DEFAULT true,
		deleted_at BIGINT,
		hash TEXT NOT NULL,
		last_sync BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS shared.prices (
		id BIGSERIAL PRIMARY KEY,
		product_id TEXT NOT NULL,
		item_selection TEXT,
		unit_price TEXT,
		price_valid_from BIGINT NOT NULL,
		price_valid_to BIGINT,
		price_qty_from TEXT,
		price_qty_to TEXT,
		hash TEXT NOT NULL,
		last_sync BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS prices_identity
		ON shared.prices (product_id, COALESCE(item_selection, ''), price_valid_from, COALESCE(price_qty_from, '0'))`,

	`CREATE TABLE IF NOT EXISTS shared.product_changes (
		id BIGSERIAL PRIMARY KEY,
		product_id TEXT NOT NULL,
		change_type TEXT NOT NULL CHECK (change_type IN ('created', 'updated', 'deleted')),
		changed_at BIGINT NOT NULL,
		sync_session_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS product_changes_changed_at ON shared.product_changes (changed_at)`,

	`CREATE TABLE IF NOT EXISTS shared.price_history (
		id BIGSERIAL PRIMARY KEY,
		product_id TEXT NOT NULL,
		variant_id TEXT,
		old_price TEXT,
		new_price TEXT NOT NULL,
		percentage_change TEXT,
		change_type TEXT NOT NULL CHECK (change_type IN ('increase', 'decrease', 'new')),
		sync_date BIGINT NOT NULL,
		source TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS price_history_sync_date ON shared.price_history (sync_date)`,

	`CREATE TABLE IF NOT EXISTS system.sync_settings (
		sync_type TEXT PRIMARY KEY,
		interval_minutes INT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT true,
		updated_at BIGINT NOT NULL
	)`,
}

// Migrate creates schemas, tables, and indexes, and seeds default sync
// settings for kinds that have no row yet. Safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	for _, kind := range types.AllSyncKinds() {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO system.sync_settings (sync_type, interval_minutes, enabled, updated_at)
			VALUES ($1, $2, true, EXTRACT(EPOCH FROM now())::bigint)
			ON CONFLICT (sync_type) DO NOTHING
		`, string(kind), types.DefaultIntervalMinutes(kind))
		if err != nil {
			return fmt.Errorf("failed to seed sync setting for %s: %w", kind, err)
		}
	}
	return nil
}
