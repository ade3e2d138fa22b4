package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/hirewire/internal/model"
)

// HostLimiter paces requests per provider key (greenhouse, lever, ...), one
// token bucket per key. Boards on the same provider share a bucket.
type HostLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

// NewHostLimiter creates a limiter allowing reqPerSec sustained requests per
// key with the given burst. A non-positive reqPerSec disables pacing.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	r := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		r = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		m: make(map[string]*rate.Limiter),
		r: r,
		b: burst,
	}
}

func (hl *HostLimiter) limiterFor(key string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if lim, ok := hl.m[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(hl.r, hl.b)
	hl.m[key] = lim
	return lim
}

// Wait blocks until the bucket for key has a token or ctx is done.
func (hl *HostLimiter) Wait(ctx context.Context, key string) error {
	if err := hl.limiterFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", key, err)
	}
	return nil
}

// RateLimitedFetcher is a decorator that enforces provider-level pacing
// before delegating to the wrapped JobFetcher.
type RateLimitedFetcher struct {
	inner   model.JobFetcher
	limiter *HostLimiter
	key     string
}

// NewRateLimitedFetcher wraps a JobFetcher with provider-level rate limiting.
// All fetchers targeting the same provider should share the same limiter.
func NewRateLimitedFetcher(inner model.JobFetcher, limiter *HostLimiter, key string) *RateLimitedFetcher {
	return &RateLimitedFetcher{
		inner:   inner,
		limiter: limiter,
		key:     key,
	}
}

func (f *RateLimitedFetcher) FetchJobs(ctx context.Context) ([]model.Job, error) {
	if err := f.limiter.Wait(ctx, f.key); err != nil {
		return nil, err
	}
	return f.inner.FetchJobs(ctx)
}

// TimeoutFetcher bounds a single adapter call. Wrapped inside the retry
// decorator, each attempt gets its own deadline.
type TimeoutFetcher struct {
	inner   model.JobFetcher
	timeout time.Duration
}

// NewTimeoutFetcher wraps inner so each FetchJobs runs under its own deadline.
// A non-positive timeout leaves the caller's context untouched.
func NewTimeoutFetcher(inner model.JobFetcher, timeout time.Duration) *TimeoutFetcher {
	return &TimeoutFetcher{inner: inner, timeout: timeout}
}

func (f *TimeoutFetcher) FetchJobs(ctx context.Context) ([]model.Job, error) {
	if f.timeout <= 0 {
		return f.inner.FetchJobs(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.inner.FetchJobs(ctx)
}
