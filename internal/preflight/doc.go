// Package preflight checks that reelvibe can serve searches before a
// command relies on it.
//
// The checker validates:
//   - Free disk space and write access in the data directory
//   - That the catalog exists, has entries, and has a vector for each
//   - Reachability of the embeddings and generator providers
//   - That the moderation key is set when the safety check is enabled
//   - Redis connectivity when it backs the caches
//
// Provider checks are warnings: search falls back to catalog-only or
// fixed results when they fail.
//
//	checker := preflight.New(cfg, preflight.WithOffline(true))
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
