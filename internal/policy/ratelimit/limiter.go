// Package ratelimit paces outbound requests to the catalog site.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/distro-catalog-crawler/internal/metrics"
)

// Limiter enforces a fixed idle gap between requests. Callers invoke Wait once
// the previous request has returned; each call blocks for a full interval
// measured from that moment, however long the previous request took.
type Limiter struct {
	interval time.Duration
}

// Config holds rate limiter configuration.
type Config struct {
	// Interval is the pause taken by every Wait. Zero disables limiting.
	Interval time.Duration
}

// New creates a new Limiter. It holds no per-run state and may be shared.
func New(cfg Config) *Limiter {
	return &Limiter{interval: cfg.Interval}
}

// Wait blocks for one interval, respecting the context. A deadline that falls
// before the interval ends fails immediately.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}
	// A fresh single-token bucket with its token spent: the next token is
	// exactly one interval away.
	bucket := rate.NewLimiter(rate.Every(l.interval), 1)
	bucket.Allow()

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	metrics.ObserveRateLimitDelay(time.Since(start))
	return nil
}
