// Package middleware provides HTTP middleware for the toolgate server.
//
// Rate limiting comes in two flavors: RateLimitMiddleware keeps token
// buckets in process memory, DistributedRateLimitMiddleware shares windows
// across replicas through Redis and fails open on Redis trouble. Both
// bucket authenticated callers by credential and anonymous callers by
// client IP.
package middleware
