package worker

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps how many documents per second a batch run processes, so a
// shared workstation or a rate-limited LLM endpoint is not saturated.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter. A non-positive rate disables limiting.
func NewLimiter(docsPerSecond float64, burst int) *Limiter {
	if docsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(docsPerSecond), burst)}
}

// Wait blocks until the next document may start, or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a document may start now, without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
