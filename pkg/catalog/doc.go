// Package catalog decides which capabilities a tenant may see and use.
//
// Enablement is computed by a fixed precedence cascade, highest first:
//
//  1. Global disable: a process-wide kill switch read from configuration at
//     start. Absolute; nothing below can re-enable.
//  2. Plan restriction: the catalog entry's minimum plan tier. A tenant
//     override cannot lift a plan restriction.
//  3. Tenant override: an admin-set per-tenant enable or disable.
//  4. Catalog default: the entry's default_enabled flag; capabilities with no
//     catalog entry default to enabled.
//
// Resolve is a pure function of (plan, catalog, overrides, disabled set,
// capability universe). SelectionService wraps it with a TTL'd per-tenant
// cache and persistence; override mutations invalidate the tenant's cache
// entry before reporting success, so admin writes are read-your-writes
// within a single instance. Other state changes (plan upgrades, catalog
// edits) converge within the cache TTL.
package catalog
