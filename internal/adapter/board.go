package adapter

import (
	"log/slog"
	"net/http"

	"github.com/amishk599/hirewire/internal/model"
)

// board holds what every per-board adapter needs. Adapters never share a board.
type board struct {
	token     string
	company   string
	client    *http.Client
	descLimit int
	logger    *slog.Logger
}

func newBoard(token, company string, client *http.Client) board {
	return board{
		token:     token,
		company:   company,
		client:    client,
		descLimit: model.DefaultDescriptionLimit,
		logger:    slog.Default(),
	}
}

// companyOr prefers the configured company name and falls back to what the
// provider reported, then to "".
func (b board) companyOr(provided string) string {
	if b.company != "" {
		return b.company
	}
	return cleanText(provided)
}

// SetDescriptionLimit overrides the rune bound on Description. A non-positive
// limit disables truncation.
func (b *board) SetDescriptionLimit(n int) { b.descLimit = n }

func (b *board) SetLogger(logger *slog.Logger) { b.logger = logger }

// noteSkipped reports items dropped because they could not be decoded or
// carried no provider id. The rest of the response is still used.
func (b board) noteSkipped(source string, skipped int) {
	if skipped > 0 {
		b.logger.Warn("skipped malformed items", "kind", "source", "source", source, "skipped", skipped)
	}
}
