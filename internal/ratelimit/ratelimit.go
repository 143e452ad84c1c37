// Package ratelimit throttles chat and login traffic.
//
// MemoryLimiter is a per-process token bucket. The Limiter interface is the
// contract the HTTP middleware depends on, so a shared backend can replace
// it when the API runs as more than one instance.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether the request may proceed. The key is opaque to
	// the limiter ("session:<id>", "ip:<addr>"). An error means the limiter
	// itself failed; callers let the request through.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases background resources.
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
