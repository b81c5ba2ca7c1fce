// Package cache provides a Redis-backed cache of fetched person attributes.
//
// The people service marks its responses with Expires or Cache-Control
// headers. The client stores each successful attribute for as long as the
// service allows, so that a repeated run does not re-fetch values that cannot
// have changed.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//	key := cache.AttributeKey(42)
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the people service
//	}
//
//	expires := cache.ExpiresFromResponse(resp, 10*time.Minute)
//	_ = manager.Set(ctx, key, &cache.Entry{Value: age, Expires: expires})
//
// # Metrics
//
//   - enrich_cache_hits_total - Cache hits
//   - enrich_cache_misses_total - Cache misses
//   - enrich_cache_errors_total{operation} - Cache operation errors
package cache
