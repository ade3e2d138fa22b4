package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/hirewire/internal/model"
	"github.com/amishk599/hirewire/internal/pipeline"
)

// ErrCycleInProgress is returned by Trigger while another cycle is running.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Runner executes one cycle; *pipeline.Pipeline implements it.
type Runner interface {
	RunCycle(ctx context.Context) (pipeline.CycleStats, error)
}

// Scheduler owns the main loop: one immediate cycle, then one per interval.
// At most one cycle runs at a time; ticks that land on a running cycle are
// skipped, not queued.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	pruner model.Pruner
	ttl    time.Duration

	running atomic.Bool

	mu      sync.RWMutex
	last    pipeline.CycleStats
	lastErr error
	hasLast bool

	now func() time.Time
}

// NewScheduler creates a scheduler that runs runner every interval.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// WithPruning makes the scheduler drop ledger entries older than ttl after
// every cycle. A nil pruner or non-positive ttl disables it.
func (s *Scheduler) WithPruning(p model.Pruner, ttl time.Duration) *Scheduler {
	s.pruner = p
	s.ttl = ttl
	return s
}

// Run starts the loop. It returns nil when ctx is cancelled, after any
// in-flight cycle has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.Trigger(ctx); errors.Is(err, ErrCycleInProgress) {
		s.logger.Warn("tick skipped, previous cycle still running")
	}
}

// Trigger runs one cycle now, unless one is already running, in which case it
// returns ErrCycleInProgress without waiting.
func (s *Scheduler) Trigger(ctx context.Context) (pipeline.CycleStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return pipeline.CycleStats{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	stats, err := s.runGuarded(ctx)

	s.mu.Lock()
	s.last, s.lastErr, s.hasLast = stats, err, true
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("cycle interrupted", "cycle_id", stats.CycleID)
		} else {
			s.logger.Error("cycle failed", "kind", "cycle", "cycle_id", stats.CycleID, "error", err)
		}
		return stats, err
	}

	s.prune(ctx)
	return stats, nil
}

// Running reports whether a cycle is executing right now.
func (s *Scheduler) Running() bool { return s.running.Load() }

// LastStats returns the most recent cycle's stats. ok is false until the
// first cycle has finished.
func (s *Scheduler) LastStats() (stats pipeline.CycleStats, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

// LastErr returns the error of the most recent cycle, if any.
func (s *Scheduler) LastErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// runGuarded converts a panic anywhere in the cycle into a CycleFailure so
// the loop survives.
// The cycle id is chosen here so a panicking cycle can still be named.
func (s *Scheduler) runGuarded(ctx context.Context) (stats pipeline.CycleStats, err error) {
	id := uuid.NewString()
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cycle panicked", "kind", "cycle", "cycle_id", id, "panic", r, "stack", string(debug.Stack()))
			stats = pipeline.CycleStats{CycleID: id, StartedAt: started, FinishedAt: s.now()}
			err = pipeline.CycleFailure{CycleID: id, Err: fmt.Errorf("panic: %v", r)}
			stats.Failures = []error{err}
		}
	}()
	return s.runner.RunCycle(pipeline.WithCycleID(ctx, id))
}

func (s *Scheduler) prune(ctx context.Context) {
	if s.pruner == nil || s.ttl <= 0 {
		return
	}
	n, err := s.pruner.Prune(ctx, s.now().Add(-s.ttl))
	if err != nil {
		s.logger.Warn("ledger prune failed", "kind", "storage", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned ledger", "removed", n, "ttl", s.ttl.String())
	}
}
