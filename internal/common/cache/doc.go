// Package cache provides the TTL key/value store that holds the PayPal bearer token.
//
// Two backends are available:
//   - LocalCache wraps github.com/patrickmn/go-cache for a single process
//   - RedisCache stores values in Redis so every instance shares one token
//
// Values are opaque strings; callers own their encoding.
//
// Usage:
//
//	c := cache.NewLocalCache(10 * time.Minute)
//	_ = c.Set(ctx, "paypal_bearer_token", blob, 9*time.Hour)
//	blob, found, err := c.Get(ctx, "paypal_bearer_token")
package cache
