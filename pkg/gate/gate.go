package gate

import (
	"context"

	"github.com/platinummonkey/toolgate/pkg/catalog"
	"github.com/platinummonkey/toolgate/pkg/observability"
	"github.com/platinummonkey/toolgate/pkg/registry"
)

// VisibilityTier is the discovery audience a request is classified into.
type VisibilityTier string

const (
	// TierPublic: no usable credential. Only capabilities that are neither
	// admin-only nor auth-requiring.
	TierPublic VisibilityTier = "public"
	// TierAuthenticated: valid credential, no tenant association. All
	// non-admin capabilities, ungated.
	TierAuthenticated VisibilityTier = "authenticated"
	// TierTenantMember: valid credential with a tenant. The tenant's
	// resolved enabled set.
	TierTenantMember VisibilityTier = "tenant_member"
	// TierTenantAdmin: tenant admin. The full registry, for management.
	TierTenantAdmin VisibilityTier = "tenant_admin"
)

// Classify maps a resolved identity to its visibility tier.
func Classify(identity Identity) VisibilityTier {
	switch {
	case !identity.Valid:
		return TierPublic
	case identity.TenantID == nil:
		return TierAuthenticated
	case identity.Role == RoleAdmin:
		return TierTenantAdmin
	default:
		return TierTenantMember
	}
}

// Gate serves tool discovery. It never fails a discovery request on backing
// store trouble: when the tenant's enablement cannot be resolved it falls
// open to the ungated non-admin list, trading momentary over-exposure of
// tenant-disableable tools for availability. Admin-only tools are excluded
// from that fallback unconditionally.
type Gate struct {
	registry  *registry.Registry
	selection *catalog.SelectionService
	resolver  IdentityResolver
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// New wires the discovery gate.
func New(reg *registry.Registry, selection *catalog.SelectionService, resolver IdentityResolver, logger *observability.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{
		registry:  reg,
		selection: selection,
		resolver:  resolver,
		logger:    logger,
		metrics:   metrics,
	}
}

// Discover returns the tool descriptors visible to the given identity, in
// registry order, each capability at most once.
func (g *Gate) Discover(ctx context.Context, identity Identity) []registry.Descriptor {
	tier := Classify(identity)
	g.metrics.DiscoveryRequestsTotal.WithLabelValues(string(tier)).Inc()

	var tools []registry.Descriptor
	switch tier {
	case TierPublic:
		tools = g.registry.Public()
	case TierAuthenticated:
		tools = g.registry.NonAdmin()
	case TierTenantAdmin:
		tools = g.registry.All()
	case TierTenantMember:
		tools = g.memberTools(ctx, identity)
	}

	g.metrics.DiscoveryListSize.WithLabelValues(string(tier)).Observe(float64(len(tools)))
	return tools
}

// ResolveIdentity validates a raw credential. Resolver infrastructure
// failures degrade to Anonymous so discovery stays available.
func (g *Gate) ResolveIdentity(ctx context.Context, token string) Identity {
	identity, err := g.resolver.Resolve(ctx, token)
	if err != nil {
		g.metrics.AuthFailuresTotal.WithLabelValues("resolver_error").Inc()
		g.logger.WithField("error", err.Error()).Warn("identity resolution failed, serving public tier")
		return Anonymous
	}
	if !identity.Valid && token != "" {
		g.metrics.AuthFailuresTotal.WithLabelValues("invalid_credential").Inc()
	}
	return identity
}

func (g *Gate) memberTools(ctx context.Context, identity Identity) []registry.Descriptor {
	enabled, err := g.selection.Enabled(ctx, *identity.TenantID)
	if err != nil {
		g.metrics.DiscoveryFallbacksTotal.Inc()
		g.logger.WithFields(map[string]interface{}{
			"tenant_id": identity.TenantID.String(),
			"error":     err.Error(),
		}).Warn("capability resolution failed, serving ungated non-admin tools")
		return g.registry.NonAdmin()
	}

	names := make(map[string]struct{}, len(enabled))
	for _, c := range enabled {
		names[c.Capability] = struct{}{}
	}

	// Admin-only descriptors are excluded regardless of enablement; an
	// override or catalog row naming one must not leak it to members.
	tools := make([]registry.Descriptor, 0, len(names))
	for _, d := range g.registry.ByNames(names) {
		if d.AdminOnly {
			continue
		}
		tools = append(tools, d)
	}
	return tools
}
