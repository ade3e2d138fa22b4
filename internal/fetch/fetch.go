// Package fetch runs every configured source concurrently and collects what
// settles, successful or not.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/hirewire/internal/model"
)

// Source is a named, fully decorated adapter.
type Source struct {
	Name    string
	Fetcher model.JobFetcher
}

// SourceError records a source that contributed nothing this round.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string { return fmt.Sprintf("source %s: %v", e.Source, e.Err) }

func (e SourceError) Unwrap() error { return e.Err }

// Result is the merged outcome of one FetchAll. Jobs keeps source order.
type Result struct {
	Jobs      []model.Job
	Failures  []SourceError
	PerSource map[string]int
}

// Coordinator fans out to all sources and waits for each to finish.
type Coordinator struct {
	sources []Source
	logger  *slog.Logger
}

func NewCoordinator(sources []Source, logger *slog.Logger) *Coordinator {
	return &Coordinator{sources: sources, logger: logger}
}

// Sources returns the configured source names in order.
func (c *Coordinator) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name
	}
	return names
}

// FetchAll invokes every source concurrently. A failing or panicking source
// never cancels its siblings; it is reported in Result.Failures instead.
func (c *Coordinator) FetchAll(ctx context.Context) Result {
	batches := make([][]model.Job, len(c.sources))
	errs := make([]error, len(c.sources))

	var g errgroup.Group
	for i, src := range c.sources {
		g.Go(func() error {
			start := time.Now()
			jobs, err := fetchOne(ctx, src)
			if err != nil {
				errs[i] = err
				c.logger.Warn("source fetch failed",
					"kind", "source",
					"source", src.Name,
					"duration", time.Since(start),
					"error", err,
				)
				return nil
			}
			batches[i] = jobs
			c.logger.Debug("source fetched",
				"source", src.Name,
				"jobs", len(jobs),
				"duration", time.Since(start),
			)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{PerSource: make(map[string]int, len(c.sources))}
	for i, src := range c.sources {
		if errs[i] != nil {
			res.Failures = append(res.Failures, SourceError{Source: src.Name, Err: errs[i]})
			continue
		}
		res.PerSource[src.Name] = len(batches[i])
		res.Jobs = append(res.Jobs, batches[i]...)
	}
	return res
}

func fetchOne(ctx context.Context, src Source) (jobs []model.Job, err error) {
	defer func() {
		if r := recover(); r != nil {
			jobs, err = nil, fmt.Errorf("panic in adapter: %v", r)
		}
	}()
	return src.Fetcher.FetchJobs(ctx)
}
