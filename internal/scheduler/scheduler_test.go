package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/hirewire/internal/pipeline"
)

// --- Mock implementations ---

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) RunCycle(_ context.Context) (pipeline.CycleStats, error) {
	n := r.calls.Add(1)
	return pipeline.CycleStats{CycleID: string(rune('a' + n - 1)), Matched: int(n)}, nil
}

// blockingRunner holds every cycle open until release is closed.
type blockingRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingRunner) RunCycle(_ context.Context) (pipeline.CycleStats, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.started) })
	<-r.release
	return pipeline.CycleStats{CycleID: "blocked"}, nil
}

type panickingRunner struct {
	calls atomic.Int32
}

func (r *panickingRunner) RunCycle(_ context.Context) (pipeline.CycleStats, error) {
	if r.calls.Add(1) == 1 {
		panic("adapter exploded")
	}
	return pipeline.CycleStats{CycleID: "recovered"}, nil
}

type idRunner struct {
	mu  sync.Mutex
	ids []string
}

func (r *idRunner) RunCycle(ctx context.Context) (pipeline.CycleStats, error) {
	id, _ := pipeline.CycleIDFrom(ctx)
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	return pipeline.CycleStats{CycleID: id}, nil
}

type recordingPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *recordingPruner) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, olderThan)
	return 3, p.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Tests ---

func TestRun_CancelReturnsPromptly(t *testing.T) {
	s := NewScheduler(&countingRunner{}, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not return within 2s after cancel")
	}
}

func TestRun_ImmediateCycleThenTicks(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, 50*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	if got := r.calls.Load(); got != 1 {
		t.Errorf("calls before first tick = %d, want 1 (immediate cycle)", got)
	}

	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done

	if got := r.calls.Load(); got < 2 {
		t.Errorf("calls = %d, want >= 2", got)
	}
}

func TestTrigger_RejectsWhileRunning(t *testing.T) {
	r := newBlockingRunner()
	s := NewScheduler(r, time.Hour, discardLogger())

	first := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background())
		first <- err
	}()
	<-r.started

	if !s.Running() {
		t.Error("Running() = false during a cycle")
	}
	if _, err := s.Trigger(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Fatalf("second Trigger error = %v, want ErrCycleInProgress", err)
	}

	close(r.release)
	if err := <-first; err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	if got := r.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if s.Running() {
		t.Error("Running() = true after cycle finished")
	}
}

func TestRun_SlowCycleSkipsTicks(t *testing.T) {
	r := newBlockingRunner()
	s := NewScheduler(r, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	<-r.started
	// Ticks fire while the first cycle holds; none may start a second cycle.
	time.Sleep(60 * time.Millisecond)
	if got := r.calls.Load(); got != 1 {
		t.Errorf("calls while blocked = %d, want 1", got)
	}

	cancel()
	close(r.release)
	<-done
}

func TestTrigger_RecoversPanic(t *testing.T) {
	r := &panickingRunner{}
	s := NewScheduler(r, time.Hour, discardLogger())

	failed, err := s.Trigger(context.Background())
	var cf pipeline.CycleFailure
	if !errors.As(err, &cf) {
		t.Fatalf("error = %v, want CycleFailure", err)
	}
	if cf.CycleID == "" || failed.CycleID != cf.CycleID {
		t.Errorf("panicked cycle id: stats %q, failure %q", failed.CycleID, cf.CycleID)
	}
	if last, _ := s.LastStats(); last.CycleID != cf.CycleID {
		t.Errorf("LastStats CycleID = %q, want %q", last.CycleID, cf.CycleID)
	}

	stats, err := s.Trigger(context.Background())
	if err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if stats.CycleID != "recovered" {
		t.Errorf("CycleID = %q, want recovered", stats.CycleID)
	}
}

func TestLastStats(t *testing.T) {
	s := NewScheduler(&countingRunner{}, time.Hour, discardLogger())

	if _, ok := s.LastStats(); ok {
		t.Fatal("LastStats ok before any cycle")
	}

	s.Trigger(context.Background())
	s.Trigger(context.Background())

	stats, ok := s.LastStats()
	if !ok || s.LastErr() != nil {
		t.Fatalf("LastStats = ok %v, err %v", ok, s.LastErr())
	}
	if stats.Matched != 2 {
		t.Errorf("Matched = %d, want 2 (latest cycle)", stats.Matched)
	}
}

func TestTrigger_PrunesAfterCycle(t *testing.T) {
	p := &recordingPruner{}
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	s := NewScheduler(&countingRunner{}, time.Hour, discardLogger()).WithPruning(p, 48*time.Hour)
	s.now = func() time.Time { return now }

	if _, err := s.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	if len(p.cutoffs) != 1 {
		t.Fatalf("prune calls = %d, want 1", len(p.cutoffs))
	}
	if want := now.Add(-48 * time.Hour); !p.cutoffs[0].Equal(want) {
		t.Errorf("cutoff = %v, want %v", p.cutoffs[0], want)
	}
}

func TestTrigger_PruneErrorDoesNotFailCycle(t *testing.T) {
	p := &recordingPruner{err: errors.New("locked")}
	s := NewScheduler(&countingRunner{}, time.Hour, discardLogger()).WithPruning(p, time.Hour)

	if _, err := s.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
}

func TestTrigger_NoPruningWithoutTTL(t *testing.T) {
	p := &recordingPruner{}
	s := NewScheduler(&countingRunner{}, time.Hour, discardLogger()).WithPruning(p, 0)

	s.Trigger(context.Background())
	if len(p.cutoffs) != 0 {
		t.Errorf("prune calls = %d, want 0", len(p.cutoffs))
	}
}

func TestTrigger_PassesCycleID(t *testing.T) {
	r := &idRunner{}
	s := NewScheduler(r, time.Hour, discardLogger())

	first, _ := s.Trigger(context.Background())
	second, _ := s.Trigger(context.Background())

	if len(r.ids) != 2 || r.ids[0] == "" || r.ids[0] == r.ids[1] {
		t.Fatalf("runner saw ids %q, want two distinct ids", r.ids)
	}
	if first.CycleID != r.ids[0] || second.CycleID != r.ids[1] {
		t.Errorf("stats ids %q/%q do not match runner ids %q", first.CycleID, second.CycleID, r.ids)
	}
}
