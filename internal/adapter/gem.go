package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

const gemBaseURL = "https://api.gem.com/job_board/v0"

type gemJob struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Location       gemLocation `json:"location"`
	EmploymentType string      `json:"employment_type"`
	AbsoluteURL    string      `json:"absolute_url"`
	FirstPublished string      `json:"first_published_at"`
	Content        string      `json:"content"`
	ContentPlain   string      `json:"content_plain"`
}

type gemLocation struct {
	Name string `json:"name"`
}

// GemAdapter fetches jobs from the Gem public job board API.
type GemAdapter struct {
	board
}

// NewGemAdapter creates a new adapter for a Gem job board.
func NewGemAdapter(boardToken string, companyName string, client *http.Client) *GemAdapter {
	return &GemAdapter{board: newBoard(boardToken, companyName, client)}
}

func (a *GemAdapter) Source() string { return "gem:" + a.token }

// FetchJobs retrieves all jobs from the Gem board and normalizes them
// into the unified Job model.
func (a *GemAdapter) FetchJobs(ctx context.Context) ([]model.Job, error) {
	url := fmt.Sprintf("%s/%s/job_posts/", gemBaseURL, a.token)

	var raw []json.RawMessage
	if err := doJSON(ctx, a.client, http.MethodGet, url, nil, &raw, "gem fetch for "+a.token); err != nil {
		return nil, err
	}

	items, skipped := decodeItems[gemJob](raw)
	source := a.Source()

	jobs := make([]model.Job, 0, len(items))
	for _, gj := range items {
		if gj.ID == "" {
			skipped++
			continue
		}

		desc := cleanText(gj.ContentPlain)
		if desc == "" {
			desc = extractText(gj.Content)
		}
		desc = truncate(desc, a.descLimit)

		job := model.Job{
			ID:           qualifyID(source, gj.ID),
			Source:       source,
			Title:        cleanText(gj.Title),
			Company:      a.companyOr(a.token),
			Location:     cleanText(gj.Location.Name),
			Description:  desc,
			URL:          gj.AbsoluteURL,
			ContractType: contractType(gj.EmploymentType, gj.Title, desc),
		}

		if gj.FirstPublished != "" {
			if t, err := time.Parse(time.RFC3339, gj.FirstPublished); err == nil {
				job.PostedAt = &t
			}
		}

		jobs = append(jobs, job)
	}

	a.noteSkipped(source, skipped)
	return jobs, nil
}
