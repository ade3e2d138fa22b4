package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/hirewire/internal/httpserver"
	"github.com/amishk599/hirewire/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the polling daemon",
	Long:  "Start the scheduler and HTTP service layer; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	logger.Info("config loaded",
		"interval", cfg.PollingInterval.String(),
		"sources", len(cfg.EnabledSources()),
		"recipients", cfg.RecipientIDs(),
		"storage", cfg.Storage.Driver,
		"ledger", cfg.Ledger.Backend,
		"realtime", cfg.Realtime.Type,
		"digest", cfg.Digest.Enabled(),
	)

	// One daemon per store: a second instance would double-notify.
	lock := flock.New(cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", cfg.LockFile, err)
	}
	if !locked {
		return fmt.Errorf("another hirewire instance holds %s", cfg.LockFile)
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, false)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return err
	}
	defer a.Close()
	logger.Info("polling sources", "sources", a.coordinator.Sources())

	sched := scheduler.NewScheduler(a.pipeline, cfg.PollingInterval, logger).
		WithPruning(a.pruner, cfg.Ledger.TTL)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Addr != "" {
		hcfg := httpserver.Config{
			Addr:       cfg.HTTP.Addr,
			Cycler:     sched,
			Store:      a.store,
			Recipients: a.registry.IDs(),
			Sources:    a.coordinator.Sources(),
		}
		// A nil *HubPublisher must not become a non-nil interface.
		if a.hub != nil {
			hcfg.Hub = a.hub
		}
		srv := httpserver.NewServer(hcfg, logger)
		a.pipeline.AddObserver(srv)

		g.Go(func() error { return srv.Start(gctx) })
		if a.relay != nil {
			g.Go(func() error { return a.relay.Run(gctx) })
		}
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Observers are fixed before the first cycle starts.
	g.Go(func() error { return sched.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("daemon stopped with error", "error", err)
		return err
	}

	logger.Info("goodbye")
	return nil
}
