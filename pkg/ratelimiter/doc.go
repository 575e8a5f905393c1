// Package ratelimiter provides token bucket rate limiting over a pluggable
// Store. The hub uses it to cap inbound message rates per connection.
//
// # Token Bucket Algorithm
//
// A bucket starts with Capacity tokens. Every RefillInterval, RefillRate
// tokens are added back up to Capacity. Each call consumes tokens and is
// allowed only when enough are available; a denied call consumes nothing.
//
// # Usage
//
//	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//		Capacity:       20,
//		RefillRate:     10,
//		RefillInterval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//
//	res, err := limiter.Allow(ctx, conn.UUID())
//	if err != nil {
//		return err
//	}
//	if !res.Allowed() {
//		log.Info("rate limited", "retry_after", res.RetryAfter())
//	}
//
// # Key Lifetime
//
// MemoryStore keeps every key until Reset. Per-connection keys should be
// reset when the connection closes.
package ratelimiter
