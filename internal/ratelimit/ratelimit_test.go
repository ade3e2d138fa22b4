package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

func TestWait_SameKey_EnforcesRate(t *testing.T) {
	limiter := NewHostLimiter(10, 1) // one token every 100ms
	ctx := context.Background()

	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	limiter := NewHostLimiter(5, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("greenhouse wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "lever"); err != nil {
		t.Fatalf("lever wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected lever wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewHostLimiter(0.2, 1)

	if err := limiter.Wait(context.Background(), "greenhouse"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "greenhouse"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestNewHostLimiter_NonPositiveRateDisablesPacing(t *testing.T) {
	limiter := NewHostLimiter(0, 0)
	start := time.Now()
	for range 50 {
		if err := limiter.Wait(context.Background(), "gem"); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected no pacing, took %v", elapsed)
	}
}

type recordingFetcher struct {
	called   bool
	deadline bool
	block    bool
}

func (f *recordingFetcher) FetchJobs(ctx context.Context) ([]model.Job, error) {
	f.called = true
	_, f.deadline = ctx.Deadline()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, nil
}

func TestRateLimitedFetcher_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewHostLimiter(10, 1)
	inner := &recordingFetcher{}
	fetcher := NewRateLimitedFetcher(inner, limiter, "greenhouse")
	ctx := context.Background()

	if _, err := fetcher.FetchJobs(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner fetcher was not called on first fetch")
	}

	inner.called = false
	start := time.Now()
	if _, err := fetcher.FetchJobs(ctx); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner fetcher was not called on second fetch")
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second fetch, got %v", elapsed)
	}
}

func TestTimeoutFetcher_BoundsSlowAdapter(t *testing.T) {
	inner := &recordingFetcher{block: true}
	f := NewTimeoutFetcher(inner, 20*time.Millisecond)

	_, err := f.FetchJobs(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !inner.deadline {
		t.Error("expected inner context to carry a deadline")
	}
}

func TestTimeoutFetcher_ZeroTimeoutPassesThrough(t *testing.T) {
	inner := &recordingFetcher{}
	if _, err := NewTimeoutFetcher(inner, 0).FetchJobs(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.deadline {
		t.Error("expected no deadline for zero timeout")
	}
}
