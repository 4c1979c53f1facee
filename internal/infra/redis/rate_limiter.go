package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter per key. The first hit of a window
// sets its expiry; a counter found without one (the process died between
// INCR and EXPIRE) gets it re-applied so the key cannot block forever.
type RateLimiter struct {
	client Counter
}

func NewRateLimiter(client Counter) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit against key and reports whether it is within limit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	} else if count > int64(limit) {
		// go-redis reports a key without expiry as -1ns
		if ttl, err := r.client.TTL(ctx, key); err == nil && ttl < 0 {
			_ = r.client.Expire(ctx, key, window)
		}
	}

	return count <= int64(limit), nil
}

// CheckoutKey buckets create-checkout calls by client address.
func CheckoutKey(clientIP string) string {
	return fmt.Sprintf("rate_limit:checkout:%s", clientIP)
}
