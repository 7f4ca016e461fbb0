package catalog

import (
	"github.com/platinummonkey/toolgate/pkg/registry"
)

// ruleInput carries everything a precedence rule may inspect for one
// capability.
type ruleInput struct {
	descriptor registry.Descriptor
	entry      *CatalogEntry
	override   *TenantOverride
	plan       PlanTier
	disabled   *DisabledSet
}

// precedenceRule evaluates one rule of the cascade. It returns matched=false
// when the rule does not apply and the next rule should be consulted.
type precedenceRule func(in ruleInput) (matched bool, enabled bool, source EnablementSource)

// The cascade, highest precedence first. The first matching rule wins; the
// final rule always matches.
var precedenceCascade = []precedenceRule{
	globalDisableRule,
	planRestrictionRule,
	tenantOverrideRule,
	catalogDefaultRule,
}

// globalDisableRule: the kill switch is unconditionally authoritative. No
// later rule may re-enable a globally disabled capability.
func globalDisableRule(in ruleInput) (bool, bool, EnablementSource) {
	if in.disabled.Contains(in.descriptor.Name) {
		return true, false, SourceGlobalDisabled
	}
	return false, false, ""
}

// planRestrictionRule: a capability whose catalog entry demands a higher plan
// is disabled regardless of any tenant override. An override moves a
// capability within the plan's allowance; it cannot buy a higher plan.
func planRestrictionRule(in ruleInput) (bool, bool, EnablementSource) {
	if in.entry != nil && !in.plan.Meets(in.entry.MinPlan) {
		return true, false, SourcePlanRestriction
	}
	return false, false, ""
}

func tenantOverrideRule(in ruleInput) (bool, bool, EnablementSource) {
	if in.override != nil {
		return true, in.override.Enabled, SourceTenantOverride
	}
	return false, false, ""
}

// catalogDefaultRule: the terminal rule. Capabilities absent from the catalog
// (e.g. registered behind a feature switch) default to enabled.
func catalogDefaultRule(in ruleInput) (bool, bool, EnablementSource) {
	if in.entry != nil {
		return true, in.entry.DefaultEnabled, SourceCatalogDefault
	}
	return true, true, SourceCatalogDefault
}

// Resolve computes the effective capability set for one tenant. It is a pure
// function of its inputs: identical inputs always produce the identical
// output, which is the property the tenant cache relies on.
//
// Every capability in universe appears exactly once in the result, in
// universe order. Because the walk covers the full registered universe,
// capabilities absent from the catalog still surface (default enabled)
// without any separate uncatalogued-capability pass.
func Resolve(plan PlanTier, entries []CatalogEntry, overrides []TenantOverride, disabled *DisabledSet, universe []registry.Descriptor) []EffectiveCapability {
	entryByName := make(map[string]*CatalogEntry, len(entries))
	for i := range entries {
		entryByName[entries[i].Capability] = &entries[i]
	}

	overrideByName := make(map[string]*TenantOverride, len(overrides))
	for i := range overrides {
		overrideByName[overrides[i].Capability] = &overrides[i]
	}

	out := make([]EffectiveCapability, 0, len(universe))
	for _, d := range universe {
		in := ruleInput{
			descriptor: d,
			entry:      entryByName[d.Name],
			override:   overrideByName[d.Name],
			plan:       plan,
			disabled:   disabled,
		}

		enabled, source := applyCascade(in)

		effective := EffectiveCapability{
			Capability:  d.Name,
			DisplayName: d.DisplayName,
			Category:    d.Category,
			Enabled:     enabled,
			Source:      source,
		}
		if in.entry != nil {
			effective.MinPlan = in.entry.MinPlan
			if in.entry.DisplayName != "" {
				effective.DisplayName = in.entry.DisplayName
			}
			if in.entry.Category != "" {
				effective.Category = in.entry.Category
			}
		}
		out = append(out, effective)
	}

	return out
}

func applyCascade(in ruleInput) (bool, EnablementSource) {
	for _, rule := range precedenceCascade {
		if matched, enabled, source := rule(in); matched {
			return enabled, source
		}
	}
	// Unreachable: catalogDefaultRule always matches.
	return false, SourceCatalogDefault
}

// Summarize aggregates an effective capability set into per-category counts.
func Summarize(capabilities []EffectiveCapability) *AvailabilitySummary {
	summary := &AvailabilitySummary{Total: len(capabilities)}

	byCategory := make(map[string]*CategorySummary)
	order := make([]string, 0)

	for _, c := range capabilities {
		if c.Enabled {
			summary.Enabled++
		}
		switch c.Source {
		case SourcePlanRestriction:
			summary.PlanRestricted++
		case SourceTenantOverride:
			summary.Overridden++
		}

		cs, ok := byCategory[c.Category]
		if !ok {
			cs = &CategorySummary{Category: c.Category}
			byCategory[c.Category] = cs
			order = append(order, c.Category)
		}
		cs.Total++
		if c.Enabled {
			cs.Enabled++
		}
	}

	summary.ByCategory = make([]CategorySummary, 0, len(order))
	for _, category := range order {
		summary.ByCategory = append(summary.ByCategory, *byCategory[category])
	}

	return summary
}
