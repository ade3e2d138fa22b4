package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockFetcher calls a function on each invocation, tracking call count.
type mockFetcher struct {
	calls int
	fn    func(attempt int) ([]model.Job, error)
}

func (m *mockFetcher) FetchJobs(_ context.Context) ([]model.Job, error) {
	m.calls++
	return m.fn(m.calls)
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	mock := &mockFetcher{fn: func(_ int) ([]model.Job, error) {
		return []model.Job{{ID: "greenhouse:acme:1"}}, nil
	}}

	rf := NewRetryFetcher(mock, "greenhouse:acme", 2, 10*time.Millisecond, discardLogger())
	got, err := rf.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected jobs: %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestRetry_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	mock := &mockFetcher{fn: func(attempt int) ([]model.Job, error) {
		if attempt == 1 {
			return nil, &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return []model.Job{{ID: "1"}}, nil
	}}

	rf := NewRetryFetcher(mock, "lever:acme", 2, 10*time.Millisecond, discardLogger())
	if _, err := rf.FetchJobs(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.calls)
	}
}

func TestRetry_RetriesNetworkErrors(t *testing.T) {
	mock := &mockFetcher{fn: func(attempt int) ([]model.Job, error) {
		if attempt < 3 {
			return nil, fmt.Errorf("dial tcp: connection refused")
		}
		return nil, nil
	}}

	rf := NewRetryFetcher(mock, "ashby:acme", 2, time.Millisecond, discardLogger())
	if _, err := rf.FetchJobs(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.calls)
	}
}

func TestRetry_DoesNotRetryOn4xx(t *testing.T) {
	mock := &mockFetcher{fn: func(_ int) ([]model.Job, error) {
		return nil, &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}}

	rf := NewRetryFetcher(mock, "gem:acme", 2, 10*time.Millisecond, discardLogger())
	_, err := rf.FetchJobs(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError with status 404, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", mock.calls)
	}
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	mock := &mockFetcher{fn: func(_ int) ([]model.Job, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	rf := NewRetryFetcher(mock, "greenhouse:acme", 2, 10*time.Millisecond, discardLogger())
	_, err := rf.FetchJobs(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected wrapped HTTPError after max retries, got %v", err)
	}
	// 1 initial + 2 retries = 3
	if mock.calls != 3 {
		t.Fatalf("expected 3 calls (1 + 2 retries), got %d", mock.calls)
	}
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	mock := &mockFetcher{fn: func(_ int) ([]model.Job, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rf := NewRetryFetcher(mock, "greenhouse:acme", 2, time.Second, discardLogger())
	_, err := rf.FetchJobs(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", mock.calls)
	}
}

func TestBackoffDelay_HonoursRetryAfterWithCap(t *testing.T) {
	rf := NewRetryFetcher(nil, "x", 2, time.Second, discardLogger())

	got := rf.backoffDelay(1, &model.HTTPError{StatusCode: 429, RetryAfter: 3 * time.Second})
	if got != 3*time.Second {
		t.Errorf("expected Retry-After to win, got %v", got)
	}
	got = rf.backoffDelay(1, &model.HTTPError{StatusCode: 429, RetryAfter: time.Hour})
	if got != maxDelay {
		t.Errorf("expected cap %v, got %v", maxDelay, got)
	}

	for range 20 {
		d := rf.backoffDelay(2, errors.New("x"))
		if d < 1400*time.Millisecond || d > 2600*time.Millisecond {
			t.Fatalf("attempt 2 delay %v outside 2s ±30%%", d)
		}
	}
}
