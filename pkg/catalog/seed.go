package catalog

import (
	"github.com/platinummonkey/toolgate/pkg/registry"
)

// minPlanByCategory is the default plan requirement applied when seeding a
// catalog row for a capability that has never been configured. Operators
// adjust individual rows afterwards; seeding never overwrites existing rows.
var minPlanByCategory = map[string]PlanTier{
	registry.CategoryData:     PlanStarter,
	registry.CategoryConfig:   PlanStarter,
	registry.CategoryAccount:  PlanStarter,
	registry.CategoryAnalysis: PlanProfessional,
	registry.CategoryAdmin:    PlanEnterprise,
}

// DefaultEntries derives seed catalog rows from the registered capability
// universe.
func DefaultEntries(universe []registry.Descriptor) []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(universe))
	for _, d := range universe {
		minPlan, ok := minPlanByCategory[d.Category]
		if !ok {
			minPlan = PlanStarter
		}
		entries = append(entries, CatalogEntry{
			Capability:     d.Name,
			DisplayName:    d.DisplayName,
			Description:    d.Description,
			Category:       d.Category,
			DefaultEnabled: true,
			MinPlan:        minPlan,
		})
	}
	return entries
}
