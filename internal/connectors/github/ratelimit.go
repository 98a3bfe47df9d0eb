package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/agentsmd/internal/logger"
)

const (
	// AuthenticatedRateLimit is the hourly quota for token requests.
	AuthenticatedRateLimit = 5000

	// AnonymousRateLimit is the hourly quota without a token.
	AnonymousRateLimit = 60

	// ProactiveRate is the proactive throttle rate (~1.2 req/sec = 4320/hr).
	ProactiveRate = 1.2

	// MinBufferFraction of the quota is kept in reserve before waiting for reset.
	MinBufferFraction = 50

	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
)

// RateLimiter combines a token bucket with the quota GitHub reports in
// response headers.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetTime time.Time
	bucket    *rate.Limiter
	minBuffer int
}

// NewRateLimiter creates a limiter for authenticated requests.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithRate(ProactiveRate, AuthenticatedRateLimit)
}

// NewRateLimiterWithQuota creates a limiter assuming the given hourly quota.
func NewRateLimiterWithQuota(quota int) *RateLimiter {
	return NewRateLimiterWithRate(ProactiveRate, quota)
}

// NewRateLimiterWithRate creates a limiter with an explicit request rate.
// rate.Inf disables proactive throttling.
func NewRateLimiterWithRate(perSecond rate.Limit, quota int) *RateLimiter {
	return &RateLimiter{
		remaining: quota,
		limit:     quota,
		bucket:    rate.NewLimiter(perSecond, 1),
		minBuffer: quota / MinBufferFraction,
	}
}

// Wait blocks until it's safe to make a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining := r.remaining
	resetTime := r.resetTime
	r.mu.Unlock()

	if remaining <= r.minBuffer && time.Now().Before(resetTime) {
		wait := time.Until(resetTime)
		logger.Warn("GitHub quota nearly used (%d left); waiting %s for reset", remaining, wait.Round(time.Second))
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// UpdateFromResponse updates rate limit state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, err := strconv.Atoi(resp.Header.Get(HeaderRateRemaining)); err == nil {
		r.remaining = v
	}
	if v, err := strconv.Atoi(resp.Header.Get(HeaderRateLimit)); err == nil {
		r.limit = v
	}
	if v, err := strconv.ParseInt(resp.Header.Get(HeaderRateReset), 10, 64); err == nil {
		r.resetTime = time.Unix(v, 0)
	}
}

// Remaining returns the current remaining requests.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// Limit returns the rate limit.
func (r *RateLimiter) Limit() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit
}

// ResetTime returns the rate limit reset time.
func (r *RateLimiter) ResetTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetTime
}
