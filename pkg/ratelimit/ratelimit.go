package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Limiter paces operations at a fixed rate with optional random jitter.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	ticker   *time.Ticker
	interval time.Duration
	jitter   float64
}

// NewLimiter creates a limiter allowing rps operations per second. Jitter is
// clamped to [0, 1] and expressed as a fraction of the interval. An rps of
// zero or below yields a limiter that never blocks.
func NewLimiter(rps, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	interval := time.Duration(float64(time.Second) / rps)
	return &Limiter{
		ticker:   time.NewTicker(interval),
		interval: interval,
		jitter:   jitter,
	}
}

// Wait blocks until the next slot opens or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.ticker == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ticker.C:
	}

	if l.jitter > 0 {
		// Only positive jitter is applied; the ticker already enforces the
		// minimum spacing.
		extra := time.Duration(rand.Float64() * l.jitter * float64(l.interval))
		if extra > 0 {
			select {
			case <-time.After(extra):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Stop releases the limiter's ticker.
func (l *Limiter) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}
