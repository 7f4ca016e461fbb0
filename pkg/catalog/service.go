package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/toolgate/pkg/observability"
	"github.com/platinummonkey/toolgate/pkg/registry"
)

// DefaultCacheTTL is how long a resolved tenant capability set may be served
// from cache. A stale read (plan change, catalog edit) heals within this
// window; override mutations invalidate synchronously and never wait for it.
const DefaultCacheTTL = 5 * time.Minute

// SelectionService computes, caches and mutates per-tenant capability
// enablement. All reads on the discovery path go through the tenant cache;
// admin mutations invalidate the affected tenant before reporting success.
type SelectionService struct {
	store    Store
	cache    TenantCache
	registry *registry.Registry
	disabled *DisabledSet
	ttl      time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics

	// resolveGroup collapses concurrent cache misses for the same tenant
	// into a single store round trip.
	resolveGroup singleflight.Group

	// generations moves on every per-tenant invalidation. A resolve that
	// started under an older generation lost the race with a mutation and
	// must not cache its snapshot.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewSelectionService wires the selection service. ttl <= 0 falls back to
// DefaultCacheTTL.
func NewSelectionService(store Store, cache TenantCache, reg *registry.Registry, disabled *DisabledSet, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *SelectionService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if disabled == nil {
		disabled = NewDisabledSet(nil)
	}
	return &SelectionService{
		store:       store,
		cache:       cache,
		registry:    reg,
		disabled:    disabled,
		ttl:         ttl,
		logger:      logger,
		metrics:     metrics,
		generations: make(map[string]uint64),
	}
}

func (s *SelectionService) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[key]
}

// invalidate bumps the tenant's generation before evicting the cache entry.
// The bump must come first: an in-flight resolve checks the generation before
// caching, so any snapshot that read pre-mutation state is either dropped by
// that check or evicted right here, never left behind.
func (s *SelectionService) invalidate(ctx context.Context, tenantID uuid.UUID) {
	s.genMu.Lock()
	s.generations[tenantID.String()]++
	s.genMu.Unlock()
	s.cache.Invalidate(ctx, tenantID)
}

// TTL returns the configured cache TTL.
func (s *SelectionService) TTL() time.Duration {
	return s.ttl
}

// GloballyDisabled returns the sorted globally disabled capability names.
func (s *SelectionService) GloballyDisabled() []string {
	return s.disabled.Names()
}

// Effective returns the tenant's full effective capability set, serving from
// cache when fresh.
func (s *SelectionService) Effective(ctx context.Context, tenantID uuid.UUID) ([]EffectiveCapability, error) {
	if cached, ok := s.cache.Get(ctx, tenantID); ok {
		s.metrics.CacheHitsTotal.WithLabelValues("tenant_capabilities").Inc()
		return cached, nil
	}
	s.metrics.CacheMissesTotal.WithLabelValues("tenant_capabilities").Inc()

	// The generation is part of the flight key, so a caller arriving after an
	// invalidation starts a fresh resolve instead of joining one that read
	// pre-mutation state.
	key := tenantID.String()
	gen := s.generation(key)

	result, err, _ := s.resolveGroup.Do(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		capabilities, err := s.resolve(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		// An invalidation landed mid-resolve: serve the snapshot to this
		// caller but do not cache it.
		if s.generation(key) == gen {
			s.cache.Put(ctx, tenantID, capabilities)
		}
		return capabilities, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]EffectiveCapability), nil
}

// EffectiveFresh bypasses the cache and recomputes from the store. Admin
// inspection uses this so operators never debug against a stale snapshot.
func (s *SelectionService) EffectiveFresh(ctx context.Context, tenantID uuid.UUID) ([]EffectiveCapability, error) {
	return s.resolve(ctx, tenantID)
}

// Enabled returns only the tenant's enabled capabilities.
func (s *SelectionService) Enabled(ctx context.Context, tenantID uuid.UUID) ([]EffectiveCapability, error) {
	all, err := s.Effective(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	enabled := make([]EffectiveCapability, 0, len(all))
	for _, c := range all {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled, nil
}

// IsEnabled answers the enablement question for a single capability. The
// global kill switch short-circuits before any store access.
func (s *SelectionService) IsEnabled(ctx context.Context, tenantID uuid.UUID, capability string) (bool, error) {
	if !s.registry.Has(capability) {
		return false, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}
	if s.disabled.Contains(capability) {
		return false, nil
	}

	if cached, ok := s.cache.Get(ctx, tenantID); ok {
		s.metrics.CacheHitsTotal.WithLabelValues("tenant_capabilities").Inc()
		for _, c := range cached {
			if c.Capability == capability {
				return c.Enabled, nil
			}
		}
		return false, nil
	}
	s.metrics.CacheMissesTotal.WithLabelValues("tenant_capabilities").Inc()

	// Targeted reads: one capability does not justify resolving the full set.
	plan, err := s.store.GetTenantPlan(ctx, tenantID)
	if err != nil {
		return false, err
	}
	entry, err := s.store.GetCatalogEntry(ctx, capability)
	if err != nil {
		return false, err
	}
	if entry != nil && !plan.Meets(entry.MinPlan) {
		return false, nil
	}
	override, err := s.store.GetOverride(ctx, tenantID, capability)
	if err != nil {
		return false, err
	}
	if override != nil {
		return override.Enabled, nil
	}
	if entry != nil {
		return entry.DefaultEnabled, nil
	}
	return true, nil
}

// Summary aggregates the tenant's effective set into per-category counts.
func (s *SelectionService) Summary(ctx context.Context, tenantID uuid.UUID) (*AvailabilitySummary, error) {
	capabilities, err := s.Effective(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return Summarize(capabilities), nil
}

// SetOverride creates or replaces a tenant override. The tenant's cache entry
// is invalidated before success is reported, so a read issued after this
// returns never observes the pre-mutation state.
func (s *SelectionService) SetOverride(ctx context.Context, override TenantOverride) (*TenantOverride, error) {
	if !s.registry.Has(override.Capability) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, override.Capability)
	}

	// Fail fast on a missing tenant rather than creating an orphan row.
	if _, err := s.store.GetTenantPlan(ctx, override.TenantID); err != nil {
		return nil, err
	}

	stored, err := s.store.UpsertOverride(ctx, override)
	if err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("upsert_override").Inc()
		return nil, err
	}

	s.invalidate(ctx, override.TenantID)
	s.metrics.OverrideMutationsTotal.WithLabelValues("set").Inc()

	s.logger.WithFields(map[string]interface{}{
		"tenant_id":  override.TenantID.String(),
		"capability": override.Capability,
		"enabled":    override.Enabled,
		"set_by":     override.SetBy,
	}).Info("tenant override set")

	return stored, nil
}

// RemoveOverride deletes a tenant override, restoring catalog-default (or
// plan-restricted) behavior. Returns ErrOverrideNotFound when no override
// exists. Invalidation happens before success is reported.
func (s *SelectionService) RemoveOverride(ctx context.Context, tenantID uuid.UUID, capability string) error {
	if !s.registry.Has(capability) {
		return fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}

	deleted, err := s.store.DeleteOverride(ctx, tenantID, capability)
	if err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("delete_override").Inc()
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s/%s", ErrOverrideNotFound, tenantID, capability)
	}

	s.invalidate(ctx, tenantID)
	s.metrics.OverrideMutationsTotal.WithLabelValues("remove").Inc()

	s.logger.WithFields(map[string]interface{}{
		"tenant_id":  tenantID.String(),
		"capability": capability,
	}).Info("tenant override removed")

	return nil
}

// Overrides lists the tenant's live overrides.
func (s *SelectionService) Overrides(ctx context.Context, tenantID uuid.UUID) ([]TenantOverride, error) {
	return s.store.ListOverrides(ctx, tenantID)
}

// Catalog returns all catalog entries.
func (s *SelectionService) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	return s.store.ListCatalog(ctx)
}

// CatalogEntry returns one catalog entry, or ErrUnknownCapability when the
// capability is neither registered nor catalogued.
func (s *SelectionService) CatalogEntry(ctx context.Context, capability string) (*CatalogEntry, error) {
	entry, err := s.store.GetCatalogEntry(ctx, capability)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}
	return entry, nil
}

// EnsureCatalog seeds missing catalog rows from the given defaults. Existing
// rows are never modified.
func (s *SelectionService) EnsureCatalog(ctx context.Context, defaults []CatalogEntry) error {
	if len(defaults) == 0 {
		return nil
	}
	if err := s.store.SeedCatalog(ctx, defaults); err != nil {
		return fmt.Errorf("failed to seed tool catalog: %w", err)
	}
	s.logger.WithField("entries", len(defaults)).Info("tool catalog seeded")
	return nil
}

// InvalidateTenant evicts one tenant's cached capability set.
func (s *SelectionService) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) {
	s.invalidate(ctx, tenantID)
}

// InvalidateAll clears the tenant cache.
func (s *SelectionService) InvalidateAll(ctx context.Context) {
	s.genMu.Lock()
	for key := range s.generations {
		s.generations[key]++
	}
	s.genMu.Unlock()
	s.cache.InvalidateAll(ctx)
}

// SweepCache evicts expired cache entries. Wired to the cron scheduler in the
// server binary.
func (s *SelectionService) SweepCache(ctx context.Context) {
	evicted := s.cache.Sweep(ctx)
	if evicted > 0 {
		s.metrics.CacheEvictionsTotal.WithLabelValues("tenant_capabilities").Add(float64(evicted))
		s.logger.WithField("evicted", evicted).Debug("tenant cache sweep")
	}
}

// resolve loads the resolver inputs and runs the precedence cascade over the
// full registered universe.
func (s *SelectionService) resolve(ctx context.Context, tenantID uuid.UUID) ([]EffectiveCapability, error) {
	start := time.Now()

	plan, err := s.store.GetTenantPlan(ctx, tenantID)
	if err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("get_tenant_plan").Inc()
		return nil, err
	}
	entries, err := s.store.ListCatalog(ctx)
	if err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("list_catalog").Inc()
		return nil, err
	}
	overrides, err := s.store.ListOverrides(ctx, tenantID)
	if err != nil {
		s.metrics.StoreErrorsTotal.WithLabelValues("list_overrides").Inc()
		return nil, err
	}

	capabilities := Resolve(plan, entries, overrides, s.disabled, s.registry.All())
	s.metrics.ResolveDuration.Observe(time.Since(start).Seconds())

	return capabilities, nil
}
