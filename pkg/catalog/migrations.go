package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema migrations for the gating subsystem.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					plan VARCHAR(32) NOT NULL DEFAULT 'starter',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_tenants_plan ON tenants(plan);
			`,
		},
		{
			Version:     2,
			Description: "Create tool_catalog table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tool_catalog (
					capability VARCHAR(255) PRIMARY KEY,
					display_name VARCHAR(255) NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					category VARCHAR(64) NOT NULL DEFAULT '',
					default_enabled BOOLEAN NOT NULL DEFAULT TRUE,
					min_plan VARCHAR(32) NOT NULL DEFAULT 'starter',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_tool_catalog_category ON tool_catalog(category);
			`,
		},
		{
			Version:     3,
			Description: "Create tenant_tool_overrides table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenant_tool_overrides (
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					capability VARCHAR(255) NOT NULL,
					enabled BOOLEAN NOT NULL,
					reason TEXT,
					set_by VARCHAR(255),
					set_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (tenant_id, capability)
				);

				CREATE INDEX IF NOT EXISTS idx_tenant_tool_overrides_tenant ON tenant_tool_overrides(tenant_id);
			`,
		},
		{
			Version:     4,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					event_type VARCHAR(64) NOT NULL,
					status VARCHAR(16) NOT NULL,
					actor VARCHAR(255),
					tenant_id UUID,
					capability VARCHAR(255),
					message TEXT,
					metadata JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_tenant ON audit_events(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
			`,
		},
	}
}

// RunMigrations applies pending migrations in version order, tracking the
// applied set in toolgate_schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS toolgate_schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range GetMigrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM toolgate_schema_migrations WHERE version = $1)`,
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO toolgate_schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
