package store

import (
	"context"
	"fmt"
)

// Migrate creates the CRM schema on the active backend. Statements are
// idempotent (CREATE IF NOT EXISTS) so the migrator can run on every
// startup. The two dialects are kept side by side rather than generated:
// the schema is small and the differences (key generation, types, row-level
// security) are easier to audit in plain text.
func Migrate(ctx context.Context, s Store) error {
	var stmts []string
	switch s.Backend() {
	case "postgres":
		stmts = postgresSchema
	default:
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := s.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// sqliteSchema is the development-backend schema. Tenant isolation here is
// purely the company_id predicates in repository queries; SQLite has no
// row-level security.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'technician'
			CHECK(role IN ('owner','admin','technician','office')),
		password_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS sites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		client_id INTEGER NOT NULL REFERENCES clients(id),
		label TEXT NOT NULL,
		address TEXT NOT NULL,
		zone_count INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS inspections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		site_id INTEGER NOT NULL REFERENCES sites(id),
		technician_id INTEGER NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK(status IN ('draft','scheduled','in_progress','completed')),
		scheduled_for DATETIME,
		completed_at DATETIME,
		summary TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS inspection_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		inspection_id INTEGER NOT NULL REFERENCES inspections(id) ON DELETE CASCADE,
		zone INTEGER NOT NULL DEFAULT 0,
		finding TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'low'
			CHECK(severity IN ('low','medium','high')),
		photo_url TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS estimates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		client_id INTEGER NOT NULL REFERENCES clients(id),
		site_id INTEGER NOT NULL REFERENCES sites(id),
		inspection_id INTEGER REFERENCES inspections(id),
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK(status IN ('draft','sent','approved','declined')),
		total_cents INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		approved_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS estimate_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		estimate_id INTEGER NOT NULL REFERENCES estimates(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1 CHECK(quantity > 0),
		unit_cents INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS work_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		client_id INTEGER NOT NULL REFERENCES clients(id),
		site_id INTEGER NOT NULL REFERENCES sites(id),
		estimate_id INTEGER REFERENCES estimates(id),
		technician_id INTEGER REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK(status IN ('pending','scheduled','in_progress','completed','cancelled')),
		description TEXT NOT NULL DEFAULT '',
		scheduled_for DATETIME,
		completed_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(id),
		technician_id INTEGER NOT NULL REFERENCES users(id),
		type TEXT NOT NULL DEFAULT 'other'
			CHECK(type IN ('inspection','work_order','other')),
		reference_id INTEGER,
		title TEXT NOT NULL,
		starts_at DATETIME NOT NULL,
		ends_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		company_id INTEGER NOT NULL REFERENCES companies(id),
		token_hash TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clients_company ON clients(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sites_company ON sites(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_inspections_company ON inspections(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_estimates_company ON estimates(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_work_orders_company ON work_orders(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_schedule_company_tech ON schedule_events(company_id, technician_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token_hash)`,
}

// postgresSchema is the production schema. Tenant tables carry row-level
// security policies keyed on the app.current_company_id setting that the
// tenant context injector binds per transaction; repository predicates
// remain as a second layer.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'technician'
			CHECK(role IN ('owner','admin','technician','office')),
		password_hash TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sites (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		client_id BIGINT NOT NULL REFERENCES clients(id),
		label TEXT NOT NULL,
		address TEXT NOT NULL,
		zone_count INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS inspections (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		site_id BIGINT NOT NULL REFERENCES sites(id),
		technician_id BIGINT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK(status IN ('draft','scheduled','in_progress','completed')),
		scheduled_for TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		summary TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS inspection_items (
		id BIGSERIAL PRIMARY KEY,
		inspection_id BIGINT NOT NULL REFERENCES inspections(id) ON DELETE CASCADE,
		zone INTEGER NOT NULL DEFAULT 0,
		finding TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'low'
			CHECK(severity IN ('low','medium','high')),
		photo_url TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS estimates (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		client_id BIGINT NOT NULL REFERENCES clients(id),
		site_id BIGINT NOT NULL REFERENCES sites(id),
		inspection_id BIGINT REFERENCES inspections(id),
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK(status IN ('draft','sent','approved','declined')),
		total_cents BIGINT NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		approved_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS estimate_lines (
		id BIGSERIAL PRIMARY KEY,
		estimate_id BIGINT NOT NULL REFERENCES estimates(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1 CHECK(quantity > 0),
		unit_cents BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS work_orders (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		client_id BIGINT NOT NULL REFERENCES clients(id),
		site_id BIGINT NOT NULL REFERENCES sites(id),
		estimate_id BIGINT REFERENCES estimates(id),
		technician_id BIGINT REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK(status IN ('pending','scheduled','in_progress','completed','cancelled')),
		description TEXT NOT NULL DEFAULT '',
		scheduled_for TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_events (
		id BIGSERIAL PRIMARY KEY,
		company_id BIGINT NOT NULL REFERENCES companies(id),
		technician_id BIGINT NOT NULL REFERENCES users(id),
		type TEXT NOT NULL DEFAULT 'other'
			CHECK(type IN ('inspection','work_order','other')),
		reference_id BIGINT,
		title TEXT NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		ends_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		company_id BIGINT NOT NULL REFERENCES companies(id),
		token_hash TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clients_company ON clients(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sites_company ON sites(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_inspections_company ON inspections(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_estimates_company ON estimates(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_work_orders_company ON work_orders(company_id)`,
	`CREATE INDEX IF NOT EXISTS idx_schedule_company_tech ON schedule_events(company_id, technician_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token_hash)`,

	// Row-level security: each tenant table is confined to the company id
	// bound by the tenant context injector for the current transaction.
	// FORCE makes the policies apply to the table owner too; without it the
	// owning role (the API runs migrations, so it owns these tables) is
	// exempt and the policies never fire. With FORCE, a query outside a
	// scoped transaction sees no tenant rows at all (current_setting returns
	// NULL with missing_ok=true), whatever role runs it. Cross-tenant
	// maintenance must either scope per tenant or connect as a role with
	// BYPASSRLS.
	`ALTER TABLE clients ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE sites ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE inspections ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE estimates ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE work_orders ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE schedule_events ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE clients FORCE ROW LEVEL SECURITY`,
	`ALTER TABLE sites FORCE ROW LEVEL SECURITY`,
	`ALTER TABLE inspections FORCE ROW LEVEL SECURITY`,
	`ALTER TABLE estimates FORCE ROW LEVEL SECURITY`,
	`ALTER TABLE work_orders FORCE ROW LEVEL SECURITY`,
	`ALTER TABLE schedule_events FORCE ROW LEVEL SECURITY`,
	`DO $$
	DECLARE t TEXT;
	BEGIN
		FOREACH t IN ARRAY ARRAY['clients','sites','inspections','estimates','work_orders','schedule_events'] LOOP
			IF NOT EXISTS (
				SELECT 1 FROM pg_policies
				WHERE tablename = t AND policyname = t || '_company_isolation'
			) THEN
				EXECUTE format(
					'CREATE POLICY %I ON %I USING (company_id = current_setting(''app.current_company_id'', true)::bigint)',
					t || '_company_isolation', t
				);
			END IF;
		END LOOP;
	END $$`,
}
