package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence boundary for catalog rows, per-tenant overrides
// and tenant plan lookups.
type Store interface {
	ListCatalog(ctx context.Context) ([]CatalogEntry, error)
	GetCatalogEntry(ctx context.Context, capability string) (*CatalogEntry, error)
	SeedCatalog(ctx context.Context, entries []CatalogEntry) error

	ListOverrides(ctx context.Context, tenantID uuid.UUID) ([]TenantOverride, error)
	GetOverride(ctx context.Context, tenantID uuid.UUID, capability string) (*TenantOverride, error)
	UpsertOverride(ctx context.Context, override TenantOverride) (*TenantOverride, error)
	DeleteOverride(ctx context.Context, tenantID uuid.UUID, capability string) (bool, error)

	GetTenantPlan(ctx context.Context, tenantID uuid.UUID) (PlanTier, error)
}

// PostgresStore implements Store on PostgreSQL. Every query runs under a
// bounded timeout so a stalled database turns into a fail-open fallback on
// the discovery path instead of a hung request.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresStore creates a Postgres-backed store with the given per-query
// timeout. A zero timeout defaults to 3 seconds.
func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// storeErr wraps driver failures in ErrStoreUnavailable so callers can
// distinguish outage from not-found.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// ListCatalog returns all catalog rows ordered by category then capability.
func (s *PostgresStore) ListCatalog(ctx context.Context) ([]CatalogEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT capability, display_name, description, category,
		       default_enabled, min_plan, created_at, updated_at
		FROM tool_catalog
		ORDER BY category, capability
	`)
	if err != nil {
		return nil, storeErr("failed to query tool catalog", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(
			&e.Capability, &e.DisplayName, &e.Description, &e.Category,
			&e.DefaultEnabled, &e.MinPlan, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, storeErr("failed to scan catalog entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("failed to read tool catalog", err)
	}

	return entries, nil
}

// GetCatalogEntry returns a single catalog row, or nil if absent.
func (s *PostgresStore) GetCatalogEntry(ctx context.Context, capability string) (*CatalogEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var e CatalogEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT capability, display_name, description, category,
		       default_enabled, min_plan, created_at, updated_at
		FROM tool_catalog
		WHERE capability = $1
	`, capability).Scan(
		&e.Capability, &e.DisplayName, &e.Description, &e.Category,
		&e.DefaultEnabled, &e.MinPlan, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("failed to get catalog entry", err)
	}

	return &e, nil
}

// SeedCatalog inserts catalog rows that do not exist yet. Existing rows are
// left untouched so operator edits survive restarts.
func (s *PostgresStore) SeedCatalog(ctx context.Context, entries []CatalogEntry) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("failed to begin catalog seed", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tool_catalog (capability, display_name, description, category, default_enabled, min_plan, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			ON CONFLICT (capability) DO NOTHING
		`, e.Capability, e.DisplayName, e.Description, e.Category, e.DefaultEnabled, e.MinPlan)
		if err != nil {
			return storeErr(fmt.Sprintf("failed to seed catalog entry %s", e.Capability), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("failed to commit catalog seed", err)
	}
	return nil
}

// ListOverrides returns all live overrides for a tenant.
func (s *PostgresStore) ListOverrides(ctx context.Context, tenantID uuid.UUID) ([]TenantOverride, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, capability, enabled, reason, set_by, set_at
		FROM tenant_tool_overrides
		WHERE tenant_id = $1
		ORDER BY capability
	`, tenantID)
	if err != nil {
		return nil, storeErr("failed to query tenant overrides", err)
	}
	defer rows.Close()

	var overrides []TenantOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("failed to read tenant overrides", err)
	}

	return overrides, nil
}

// GetOverride returns the live override for a (tenant, capability) pair, or
// nil if none exists.
func (s *PostgresStore) GetOverride(ctx context.Context, tenantID uuid.UUID, capability string) (*TenantOverride, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, capability, enabled, reason, set_by, set_at
		FROM tenant_tool_overrides
		WHERE tenant_id = $1 AND capability = $2
	`, tenantID, capability)

	o, err := scanOverride(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// UpsertOverride creates or replaces the override for a (tenant, capability)
// pair. Upsert semantics keep the at-most-one-live-override invariant.
func (s *PostgresStore) UpsertOverride(ctx context.Context, override TenantOverride) (*TenantOverride, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tenant_tool_overrides (tenant_id, capability, enabled, reason, set_by, set_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (tenant_id, capability)
		DO UPDATE SET enabled = EXCLUDED.enabled, reason = EXCLUDED.reason,
		              set_by = EXCLUDED.set_by, set_at = EXCLUDED.set_at
		RETURNING tenant_id, capability, enabled, reason, set_by, set_at
	`, override.TenantID, override.Capability, override.Enabled, override.Reason, override.SetBy)

	o, err := scanOverride(row)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteOverride removes an override, reporting whether a row was deleted.
func (s *PostgresStore) DeleteOverride(ctx context.Context, tenantID uuid.UUID, capability string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tenant_tool_overrides
		WHERE tenant_id = $1 AND capability = $2
	`, tenantID, capability)
	if err != nil {
		return false, storeErr("failed to delete override", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("failed to read delete result", err)
	}
	return affected > 0, nil
}

// GetTenantPlan returns the tenant's current plan tier.
func (s *PostgresStore) GetTenantPlan(ctx context.Context, tenantID uuid.UUID) (PlanTier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var plan string
	err := s.db.QueryRowContext(ctx, `
		SELECT plan FROM tenants WHERE id = $1
	`, tenantID).Scan(&plan)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
	}
	if err != nil {
		return "", storeErr("failed to get tenant plan", err)
	}

	tier, err := ParsePlanTier(plan)
	if err != nil {
		return "", fmt.Errorf("tenant %s has %w", tenantID, err)
	}
	return tier, nil
}

func scanOverride(scanner interface {
	Scan(dest ...interface{}) error
}) (*TenantOverride, error) {
	var o TenantOverride
	var reason, setBy sql.NullString

	err := scanner.Scan(&o.TenantID, &o.Capability, &o.Enabled, &reason, &setBy, &o.SetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storeErr("failed to scan override", err)
	}

	o.Reason = reason.String
	o.SetBy = setBy.String
	return &o, nil
}
