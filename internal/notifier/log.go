package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/hirewire/internal/model"
)

var _ model.DigestSender = (*LogDigestSender)(nil)

// LogDigestSender writes the digest to the given logger.
type LogDigestSender struct {
	logger *slog.Logger
}

func NewLogDigestSender(logger *slog.Logger) *LogDigestSender {
	return &LogDigestSender{logger: logger}
}

// Send logs the digest. Returns nil (stdout logging does not fail).
func (n *LogDigestSender) Send(_ context.Context, recipients []string, subject, body string) error {
	n.logger.Info("digest", "recipients", recipients, "subject", subject, "body", body)
	return nil
}
