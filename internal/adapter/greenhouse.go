package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	CompanyName    string             `json:"company_name"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	UpdatedAt      string             `json:"updated_at"`
	FirstPublished string             `json:"first_published"`
	Content        string             `json:"content"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// GreenhouseAdapter fetches jobs from the Greenhouse public boards API.
type GreenhouseAdapter struct {
	board
}

// NewGreenhouseAdapter creates a new adapter for a Greenhouse board.
func NewGreenhouseAdapter(boardToken string, companyName string, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{board: newBoard(boardToken, companyName, client)}
}

// Source returns the origin identifier, e.g. "greenhouse:acme".
func (a *GreenhouseAdapter) Source() string { return "greenhouse:" + a.token }

// FetchJobs retrieves all jobs (with content) from the Greenhouse board and
// normalizes them into the unified Job model.
func (a *GreenhouseAdapter) FetchJobs(ctx context.Context) ([]model.Job, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", greenhouseBaseURL, a.token)

	var ghResp greenhouseResponse
	if err := doJSON(ctx, a.client, http.MethodGet, url, nil, &ghResp, "greenhouse fetch for "+a.token); err != nil {
		return nil, err
	}

	items, skipped := decodeItems[greenhouseJob](ghResp.Jobs)
	source := a.Source()

	jobs := make([]model.Job, 0, len(items))
	for _, gj := range items {
		if gj.ID == 0 {
			skipped++
			continue
		}
		desc := truncate(extractText(gj.Content), a.descLimit)
		job := model.Job{
			ID:           qualifyID(source, fmt.Sprintf("%d", gj.ID)),
			Source:       source,
			Title:        cleanText(gj.Title),
			Company:      a.companyOr(gj.CompanyName),
			Location:     cleanText(gj.Location.Name),
			Description:  desc,
			URL:          gj.AbsoluteURL,
			ContractType: contractType("", gj.Title, desc),
		}

		// first_published is the true posting date; updated_at moves on every edit.
		for _, ts := range []string{gj.FirstPublished, gj.UpdatedAt} {
			if ts == "" {
				continue
			}
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				job.PostedAt = &t
				break
			}
		}

		jobs = append(jobs, job)
	}

	a.noteSkipped(source, skipped)
	return jobs, nil
}
