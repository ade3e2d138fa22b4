package pipeline

import (
	"context"
	"log/slog"

	"github.com/amishk599/hirewire/internal/model"
)

// LogObserver logs each match and the end-of-cycle summary.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) JobMatched(cycleID string, job model.Job, recipients []string) {
	o.logger.Info("job matched",
		"cycle_id", cycleID,
		"job_id", job.ID,
		"title", job.Title,
		"company", job.Company,
		"recipients", recipients,
	)
}

func (o *LogObserver) CycleCompleted(s CycleStats) {
	level := slog.LevelInfo
	if len(s.Failures) > 0 {
		level = slog.LevelWarn
	}
	o.logger.Log(context.Background(), level, "cycle complete",
		"cycle_id", s.CycleID,
		"fetched", s.Fetched,
		"new", s.New,
		"matched", s.Matched,
		"persisted", s.Persisted,
		"published", s.Published,
		"ledger_size", s.LedgerSize,
		"sources_ok", s.SourcesOK,
		"sources_failed", s.SourcesFailed,
		"digest_sent", s.DigestSent,
		"failures", len(s.Failures),
		"duration", s.Duration(),
	)
}
