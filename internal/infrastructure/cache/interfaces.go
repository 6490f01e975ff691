package cache

import (
	"context"
	"time"
)

// RateLimiter counts requests per key in a sliding window shared by all
// API replicas
type RateLimiter interface {
	// Allow records a request and reports whether it fits under limit
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Remaining returns how many requests are left in the current window
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)

	// Reset clears the counter for a key
	Reset(ctx context.Context, key string) error
}

// Key prefixes for consistent cache key naming
const (
	LockPrefix      = "qaudit:lock:"
	RateLimitPrefix = "qaudit:ratelimit:"
)
