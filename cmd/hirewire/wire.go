package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/hirewire/internal/adapter"
	"github.com/amishk599/hirewire/internal/config"
	"github.com/amishk599/hirewire/internal/fetch"
	"github.com/amishk599/hirewire/internal/filter"
	"github.com/amishk599/hirewire/internal/ledger"
	"github.com/amishk599/hirewire/internal/model"
	"github.com/amishk599/hirewire/internal/notifier"
	"github.com/amishk599/hirewire/internal/pipeline"
	"github.com/amishk599/hirewire/internal/ratelimit"
	"github.com/amishk599/hirewire/internal/retry"
	"github.com/amishk599/hirewire/internal/secrets"
	"github.com/amishk599/hirewire/internal/store"
)

// jobStore is what every storage backend offers to the app.
type jobStore interface {
	model.JobStore
	model.JobReader
	io.Closer
}

// app holds every long-lived component built from one Config.
type app struct {
	cfg         *config.Config
	store       jobStore
	ledger      model.Ledger
	pruner      model.Pruner // nil when the ledger expires entries itself
	hub         *notifier.HubPublisher
	relay       *notifier.RedisRelay // set when realtime.type is redis
	registry    *filter.Registry
	coordinator *fetch.Coordinator
	pipeline    *pipeline.Pipeline
	closers     []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

// buildApp wires the pipeline. In dry-run mode nothing is persisted, nothing
// is marked seen beyond this process and notifications only go to the log.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, dryRun bool) (*app, error) {
	a := &app{cfg: cfg, registry: buildRegistry(cfg)}

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	sources, err := buildSources(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}
	a.coordinator = fetch.NewCoordinator(sources, logger)

	var rdb *redis.Client
	needRedis := !dryRun && (cfg.Ledger.Backend == "redis" || cfg.Realtime.Type == "redis")
	if needRedis {
		rdb, err = openRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb)
	}

	if dryRun {
		a.store = store.NewNopStore()
		mem := ledger.NewMemory()
		a.ledger, a.pruner = mem, mem
	} else {
		if err := a.openStorage(ctx, cfg, rdb); err != nil {
			a.Close()
			return nil, err
		}
	}

	var publisher model.Publisher
	var digest model.DigestSender
	if dryRun {
		publisher = notifier.NewLogPublisher(logger)
		digest = notifier.NewLogDigestSender(logger)
	} else {
		publisher = a.buildPublisher(cfg, rdb, logger)
		digest, err = buildDigest(cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.pipeline = pipeline.New(pipeline.Config{
		Fetcher:          a.coordinator,
		Ledger:           a.ledger,
		Matcher:          a.registry,
		Store:            a.store,
		Publisher:        publisher,
		Digest:           digest,
		DigestRecipients: cfg.Digest.Recipients,
		DigestSubject:    cfg.Digest.Subject,
		PreviewLimit:     cfg.Digest.PreviewLimit,
		Workers:          cfg.Fetch.Workers,
		Observers:        []pipeline.Observer{pipeline.NewLogObserver(logger)},
	}, logger)

	return a, nil
}

func (a *app) openStorage(ctx context.Context, cfg *config.Config, rdb *redis.Client) error {
	var st interface {
		jobStore
		model.Ledger
		model.Pruner
	}
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Storage.DSN, cfg.Storage.MaxConns)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		st = pg
	default:
		sq, err := store.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		st = sq
	}
	a.store = st
	a.closers = append(a.closers, st)

	switch cfg.Ledger.Backend {
	case "redis":
		a.ledger = ledger.NewRedis(rdb, cfg.Ledger.TTL)
	case "memory":
		mem := ledger.NewMemory()
		a.ledger, a.pruner = mem, mem
	default:
		a.ledger, a.pruner = st, st
	}
	return nil
}

func (a *app) buildPublisher(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) model.Publisher {
	switch cfg.Realtime.Type {
	case "redis":
		a.hub = notifier.NewHubPublisher()
		a.relay = notifier.NewRedisRelay(rdb, a.hub, logger)
		return notifier.NewRedisPublisher(rdb)
	case "hub":
		a.hub = notifier.NewHubPublisher()
		return a.hub
	default:
		return notifier.NewLogPublisher(logger)
	}
}

// buildDigest returns nil when the digest is disabled.
func buildDigest(cfg *config.Config, logger *slog.Logger) (model.DigestSender, error) {
	if !cfg.Digest.Enabled() {
		return nil, nil
	}
	switch cfg.Digest.Type {
	case "slack":
		return notifier.NewSlackDigestSender(cfg.Digest.WebhookURL, &http.Client{Timeout: cfg.Fetch.Timeout}, logger), nil
	case "smtp":
		sc := cfg.Digest.SMTP
		password, err := secrets.SMTPPassword(smtpAccount(sc), sc.Password)
		if err != nil && sc.Username != "" {
			return nil, err
		}
		return notifier.NewSMTPSender(notifier.SMTPConfig{
			Host:     sc.Host,
			Port:     sc.Port,
			Username: sc.Username,
			Password: password,
			From:     sc.From,
		}, logger), nil
	default:
		return notifier.NewLogDigestSender(logger), nil
	}
}

func buildRegistry(cfg *config.Config) *filter.Registry {
	recipients := make([]filter.Recipient, len(cfg.Recipients))
	for i, r := range cfg.Recipients {
		recipients[i] = filter.Recipient{
			ID: r.ID,
			Filter: filter.NewCriteriaFilter(filter.Criteria{
				Roles:      r.Criteria.RoleKeywords,
				Employment: r.Criteria.EmploymentKeywords,
				Locations:  r.Criteria.Locations,
			}),
		}
	}
	return filter.NewRegistry(recipients...)
}

// buildSources decorates each enabled adapter: timeout per attempt, then
// per-host pacing, then retries around both.
func buildSources(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) ([]fetch.Source, error) {
	limiter := ratelimit.NewHostLimiter(cfg.Fetch.RequestsPerSecond, cfg.Fetch.Burst)

	var sources []fetch.Source
	for _, sc := range cfg.EnabledSources() {
		a, err := newAdapter(sc, cfg, httpClient, logger)
		if err != nil {
			return nil, err
		}

		var f model.JobFetcher = ratelimit.NewTimeoutFetcher(a, cfg.Fetch.Timeout)
		f = ratelimit.NewRateLimitedFetcher(f, limiter, limiterKey(sc))
		f = retry.NewRetryFetcher(f, a.Source(), cfg.Fetch.MaxRetries, cfg.Fetch.RetryDelay, logger)

		sources = append(sources, fetch.Source{Name: a.Source(), Fetcher: f})
		logger.Debug("registered source", "source", a.Source(), "name", sc.Name)
	}
	if len(sources) == 0 {
		return nil, errors.New("no sources to poll")
	}
	return sources, nil
}

func newAdapter(sc config.SourceConfig, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (adapter.Adapter, error) {
	a, err := adapter.New(sc.Type, sc.Board(), sc.Name, httpClient)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", sc.Name, err)
	}
	a.SetDescriptionLimit(cfg.Fetch.DescriptionLimit)
	a.SetLogger(logger)
	return a, nil
}

// limiterKey paces per provider host. Workday tenants live on their own hosts.
func limiterKey(sc config.SourceConfig) string {
	if sc.Type == config.SourceWorkday {
		if u, err := url.Parse(sc.URL); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return sc.Type
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}
