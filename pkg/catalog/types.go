package catalog

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// PlanTier represents subscription plan tiers, ordered lowest to highest.
type PlanTier string

const (
	PlanStarter      PlanTier = "starter"
	PlanProfessional PlanTier = "professional"
	PlanEnterprise   PlanTier = "enterprise"
)

// rank returns the ordering position of a plan tier. Unknown tiers rank
// below starter so a corrupt plan value can never unlock restricted tools.
func (p PlanTier) rank() int {
	switch p {
	case PlanStarter:
		return 1
	case PlanProfessional:
		return 2
	case PlanEnterprise:
		return 3
	default:
		return 0
	}
}

// Meets reports whether the plan satisfies the given minimum tier.
func (p PlanTier) Meets(min PlanTier) bool {
	return p.rank() >= min.rank()
}

// Valid reports whether the tier is one of the known plan values.
func (p PlanTier) Valid() bool {
	return p.rank() > 0
}

// ParsePlanTier parses a stored plan string.
func ParsePlanTier(s string) (PlanTier, error) {
	p := PlanTier(s)
	if !p.Valid() {
		return "", errors.New("invalid plan tier: " + s)
	}
	return p, nil
}

// CatalogEntry is the persisted default enablement and plan requirement for
// a capability.
type CatalogEntry struct {
	Capability     string    `json:"capability"`
	DisplayName    string    `json:"display_name"`
	Description    string    `json:"description,omitempty"`
	Category       string    `json:"category"`
	DefaultEnabled bool      `json:"default_enabled"`
	MinPlan        PlanTier  `json:"min_plan"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TenantOverride is an admin-configured per-tenant enablement override.
// At most one live override exists per (tenant, capability) pair.
type TenantOverride struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	Capability string    `json:"capability"`
	Enabled    bool      `json:"enabled"`
	Reason     string    `json:"reason,omitempty"`
	SetBy      string    `json:"set_by,omitempty"`
	SetAt      time.Time `json:"set_at"`
}

// EnablementSource identifies which precedence rule decided a capability's
// effective state.
type EnablementSource string

const (
	SourceGlobalDisabled  EnablementSource = "global_disabled"
	SourcePlanRestriction EnablementSource = "plan_restriction"
	SourceTenantOverride  EnablementSource = "tenant_override"
	SourceCatalogDefault  EnablementSource = "catalog_default"
)

// EffectiveCapability is the computed per-tenant state of one capability.
// It is never persisted; it is always reproducible from the resolver inputs.
type EffectiveCapability struct {
	Capability  string           `json:"capability"`
	DisplayName string           `json:"display_name"`
	Category    string           `json:"category"`
	Enabled     bool             `json:"enabled"`
	Source      EnablementSource `json:"source"`
	MinPlan     PlanTier         `json:"min_plan,omitempty"`
}

// CategorySummary counts enabled capabilities within one category.
type CategorySummary struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Enabled  int    `json:"enabled"`
}

// AvailabilitySummary aggregates a tenant's effective capability set.
type AvailabilitySummary struct {
	Total          int               `json:"total"`
	Enabled        int               `json:"enabled"`
	PlanRestricted int               `json:"plan_restricted"`
	Overridden     int               `json:"overridden"`
	ByCategory     []CategorySummary `json:"by_category"`
}

// DisabledSet is the process-wide capability kill switch, read once from
// configuration at start. It is immutable for the process lifetime so no
// in-process code path, the cache included, can bypass it.
type DisabledSet struct {
	names map[string]struct{}
}

// NewDisabledSet builds a DisabledSet from configured capability names.
func NewDisabledSet(names []string) *DisabledSet {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return &DisabledSet{names: set}
}

// Contains reports whether the capability is globally disabled.
func (s *DisabledSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Names returns the disabled capability names, sorted.
func (s *DisabledSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of globally disabled capabilities.
func (s *DisabledSet) Len() int {
	return len(s.names)
}

// Error taxonomy. Store failures wrap ErrStoreUnavailable so the discovery
// gate can distinguish "fail open" from programmer error.
var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrOverrideNotFound  = errors.New("override not found")
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrStoreUnavailable  = errors.New("backing store unavailable")
)
