package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/hirewire/internal/fetch"
	"github.com/amishk599/hirewire/internal/ledger"
	"github.com/amishk599/hirewire/internal/model"
	"github.com/amishk599/hirewire/internal/notifier"
)

// DefaultWorkers bounds how many candidates are processed at once.
const DefaultWorkers = 8

const unmarkTimeout = 5 * time.Second

// Fetcher is the fetch stage; *fetch.Coordinator implements it.
type Fetcher interface {
	FetchAll(ctx context.Context) fetch.Result
}

// Matcher resolves which recipients want a job; *filter.Registry implements it.
type Matcher interface {
	MatchingRecipients(job model.Job) []string
}

// CycleStats summarizes one cycle.
type CycleStats struct {
	CycleID       string
	StartedAt     time.Time
	FinishedAt    time.Time
	Fetched       int
	New           int
	Matched       int
	Persisted     int
	Published     int
	LedgerSize    int
	SourcesOK     int
	SourcesFailed int
	DigestSent    bool
	Failures      []error
}

type cycleIDKey struct{}

// WithCycleID makes the next RunCycle on ctx use id instead of generating one.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

// CycleIDFrom returns the id set by WithCycleID.
func CycleIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(cycleIDKey{}).(string)
	return id, ok && id != ""
}

// Duration is FinishedAt minus StartedAt.
func (s CycleStats) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

// Observer is notified synchronously as a cycle progresses. Implementations
// must be safe for concurrent JobMatched calls and must not block.
type Observer interface {
	JobMatched(cycleID string, job model.Job, recipients []string)
	CycleCompleted(stats CycleStats)
}

// Config wires a Pipeline. Publisher and Digest are optional.
type Config struct {
	Fetcher   Fetcher
	Ledger    model.Ledger
	Matcher   Matcher
	Store     model.JobStore
	Publisher model.Publisher
	Digest    model.DigestSender

	DigestRecipients []string
	DigestSubject    string // prefix; empty means no prefix
	PreviewLimit     int
	Workers          int

	Observers []Observer
}

// Pipeline runs fetch, dedup, match, persist and fan-out for one cycle at a
// time. It holds no cross-cycle state of its own; the ledger does.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = notifier.DefaultPreviewLimit
	}
	return &Pipeline{cfg: cfg, logger: logger, now: time.Now}
}

// AddObserver registers o for subsequent cycles. It must not be called while
// a cycle is running.
func (p *Pipeline) AddObserver(o Observer) {
	p.cfg.Observers = append(p.cfg.Observers, o)
}

// cycle accumulates per-cycle results from concurrent workers.
type cycle struct {
	mu       sync.Mutex
	stats    CycleStats
	payloads []indexedPayload
}

type indexedPayload struct {
	idx     int
	payload model.NotificationPayload
}

func (c *cycle) update(fn func(s *CycleStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

func (c *cycle) fail(err error) {
	c.update(func(s *CycleStats) { s.Failures = append(s.Failures, err) })
}

// RunCycle executes one full cycle. Per-source, per-job and per-notification
// failures are isolated into CycleStats.Failures; an error is returned only
// when ctx ends before the cycle completes.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleStats, error) {
	id, ok := CycleIDFrom(ctx)
	if !ok {
		id = uuid.NewString()
	}
	c := &cycle{stats: CycleStats{CycleID: id, StartedAt: p.now()}}
	logger := p.logger.With("cycle_id", c.stats.CycleID)

	res := p.cfg.Fetcher.FetchAll(ctx)
	c.stats.Fetched = len(res.Jobs)
	c.stats.SourcesOK = len(res.PerSource)
	c.stats.SourcesFailed = len(res.Failures)
	for _, f := range res.Failures {
		c.stats.Failures = append(c.stats.Failures, SourceFailure{Source: f.Source, Err: f.Err})
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i, job := range res.Jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			p.process(ctx, logger, c, i, job)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		c.stats.FinishedAt = p.now()
		return c.stats, fmt.Errorf("cycle %s interrupted: %w", c.stats.CycleID, err)
	}

	p.dispatchDigest(ctx, logger, c)

	if n, err := p.cfg.Ledger.Len(ctx); err != nil {
		logger.Warn("ledger size unavailable", "kind", "storage", "error", err)
	} else {
		c.stats.LedgerSize = n
	}
	c.stats.FinishedAt = p.now()

	for _, o := range p.cfg.Observers {
		o.CycleCompleted(c.stats)
	}
	return c.stats, nil
}

// process runs one candidate through dedup, match, then persist and publish
// concurrently.
func (p *Pipeline) process(ctx context.Context, logger *slog.Logger, c *cycle, idx int, job model.Job) {
	fp := ledger.Fingerprint(job)

	isNew, err := p.cfg.Ledger.CheckAndMark(ctx, fp)
	if err != nil {
		// Treated as seen: a flaky ledger must not cause duplicate notifications.
		logger.Warn("ledger check failed", "kind", "storage", "job_id", job.ID, "fingerprint", fp, "error", err)
		c.fail(StorageFailure{JobID: job.ID, Op: "ledger", Err: err})
		return
	}
	if !isNew {
		return
	}
	c.update(func(s *CycleStats) { s.New++ })

	recipients := p.cfg.Matcher.MatchingRecipients(job)
	if len(recipients) == 0 {
		return
	}
	c.update(func(s *CycleStats) { s.Matched++ })

	payload := model.NewPayload(job, p.now())

	var (
		g      errgroup.Group
		stored bool
	)
	g.Go(func() error {
		if err := p.cfg.Store.Upsert(ctx, job); err != nil {
			logger.Error("upsert failed", "kind", "storage", "job_id", job.ID, "error", err)
			c.fail(StorageFailure{JobID: job.ID, Op: "upsert", Err: err})
			return nil
		}
		stored = true
		c.update(func(s *CycleStats) { s.Persisted++ })
		return nil
	})
	if p.cfg.Publisher != nil {
		g.Go(func() error {
			p.publish(ctx, logger, c, payload, recipients)
			return nil
		})
	}
	_ = g.Wait()

	// Not stored, or fan-out cut short: the candidate must come back next cycle.
	if !stored || ctx.Err() != nil {
		p.unmark(ctx, logger, c, job.ID, fp)
	}
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	c.payloads = append(c.payloads, indexedPayload{idx: idx, payload: payload})
	c.mu.Unlock()

	for _, o := range p.cfg.Observers {
		o.JobMatched(c.stats.CycleID, job, recipients)
	}
}

// unmark rolls back the ledger entry. It runs even when ctx is done, bounded
// by unmarkTimeout.
func (p *Pipeline) unmark(ctx context.Context, logger *slog.Logger, c *cycle, jobID, fp string) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unmarkTimeout)
	defer cancel()
	if err := p.cfg.Ledger.Unmark(uctx, fp); err != nil {
		logger.Error("ledger rollback failed", "kind", "storage", "job_id", jobID, "fingerprint", fp, "error", err)
		c.fail(StorageFailure{JobID: jobID, Op: "unmark", Err: err})
		return
	}
	logger.Debug("ledger entry rolled back", "job_id", jobID, "fingerprint", fp)
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, c *cycle, payload model.NotificationPayload, recipients []string) {
	b, err := payload.Marshal()
	if err != nil {
		c.fail(NotificationFailure{Channel: "realtime", JobID: payload.JobID, Err: err})
		return
	}
	for _, r := range recipients {
		if err := p.cfg.Publisher.Publish(ctx, notifier.Topic(r), b); err != nil {
			logger.Warn("realtime publish failed", "kind", "notification", "job_id", payload.JobID, "recipient", r, "error", err)
			c.fail(NotificationFailure{Channel: "realtime", Recipient: r, JobID: payload.JobID, Err: err})
			continue
		}
		c.update(func(s *CycleStats) { s.Published++ })
	}
}

// dispatchDigest sends one summary of the cycle's matches in fetch order.
// Absent configuration or no matches is a no-op.
func (p *Pipeline) dispatchDigest(ctx context.Context, logger *slog.Logger, c *cycle) {
	if p.cfg.Digest == nil || len(p.cfg.DigestRecipients) == 0 || len(c.payloads) == 0 {
		return
	}

	slices.SortFunc(c.payloads, func(a, b indexedPayload) int { return a.idx - b.idx })
	ordered := make([]model.NotificationPayload, len(c.payloads))
	for i, ip := range c.payloads {
		ordered[i] = ip.payload
	}

	subject, body := notifier.ComposeDigest(ordered, p.cfg.PreviewLimit)
	if p.cfg.DigestSubject != "" {
		subject = p.cfg.DigestSubject + ": " + subject
	}

	if err := p.cfg.Digest.Send(ctx, p.cfg.DigestRecipients, subject, body); err != nil {
		logger.Warn("digest dispatch failed", "kind", "notification", "matches", len(ordered), "error", err)
		c.stats.Failures = append(c.stats.Failures, NotificationFailure{Channel: "digest", Err: err})
		return
	}
	c.stats.DigestSent = true
}
