package logging

// Event names used as the msg field of pipeline log lines. They are stable
// so that logs can be filtered with `reelvibe logs --event`.
const (
	EventSearchStarted          = "search_started"
	EventSearchCompleted        = "search_completed"
	EventSearchRejected         = "search_rejected"
	EventSearchFailed           = "search_failed"
	EventSafetyDegraded         = "safety_check_degraded"
	EventRecentCacheDegraded    = "recent_cache_degraded"
	EventGenerationRepaired     = "generation_repaired"
	EventGenerationFallback     = "generation_fallback"
	EventGenerationCacheHit     = "generation_cache_hit"
	EventGenerationCacheInvalid = "generation_cache_invalid"
	EventResolveUnverified      = "resolve_unverified"
	EventIndexReloaded          = "index_reloaded"
	EventExplainFallback        = "explain_fallback"
)
