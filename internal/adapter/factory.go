package adapter

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/amishk599/hirewire/internal/model"
)

// Adapter is a per-board fetcher that knows its own source id.
type Adapter interface {
	model.JobFetcher
	Source() string
	SetDescriptionLimit(n int)
	SetLogger(logger *slog.Logger)
}

var (
	_ Adapter = (*GreenhouseAdapter)(nil)
	_ Adapter = (*LeverAdapter)(nil)
	_ Adapter = (*AshbyAdapter)(nil)
	_ Adapter = (*GemAdapter)(nil)
	_ Adapter = (*WorkdayAdapter)(nil)
	_ Adapter = (*SmartRecruitersAdapter)(nil)
)

// New builds the adapter for kind. board is the board token, or the CXS jobs
// URL for workday.
func New(kind, board, company string, client *http.Client) (Adapter, error) {
	switch kind {
	case "greenhouse":
		return NewGreenhouseAdapter(board, company, client), nil
	case "lever":
		return NewLeverAdapter(board, company, client), nil
	case "ashby":
		return NewAshbyAdapter(board, company, client), nil
	case "gem":
		return NewGemAdapter(board, company, client), nil
	case "workday":
		return NewWorkdayAdapter(board, company, client), nil
	case "smartrecruiters":
		return NewSmartRecruitersAdapter(board, company, client), nil
	}
	return nil, fmt.Errorf("unsupported source type %q", kind)
}
