// Package audit records who changed tenant tool enablement and when.
//
// Admin mutations (override set/removed) and denied admin requests are
// logged through the Logger interface. Sinks: LogrusLogger for a shippable
// structured stream, DBLogger for the queryable audit_events table, and
// MultiLogger to fan out to both. Audit sink failures never fail the
// underlying mutation.
package audit
