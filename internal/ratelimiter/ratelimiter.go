// Package ratelimiter throttles calls to remote storage backends.
//
// Object stores cap request rates per prefix and answer with throttling
// errors (S3 SlowDown) once the cap is exceeded. Waiting on a local token
// bucket before each request keeps a single process under that cap instead
// of burning retries.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket: tokens accrue at a fixed rate up to a
// burst capacity, and every request takes one.
//
// A nil *RateLimiter never blocks, so callers can hold an optional limiter
// without nil checks.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerSecond sustained with bursts of
// up to burst requests. A burst of zero defaults to requestsPerSecond.
//
// Returns nil (unlimited) when requestsPerSecond is zero.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = requestsPerSecond
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow takes a token if one is available and reports whether it did.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
//
// Returns the context error if ctx ends first, or an error if the wait
// would outlast ctx's deadline.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Tokens returns the tokens currently in the bucket. For monitoring only;
// the value may change immediately.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return 0
	}
	return r.limiter.Tokens()
}
