package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	EmploymentType   string `json:"employmentType"`
	JobURL           string `json:"jobUrl"`
	PublishedAt      string `json:"publishedAt"`
	IsListed         bool   `json:"isListed"`
	DescriptionPlain string `json:"descriptionPlain"`
	DescriptionHTML  string `json:"descriptionHtml"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// AshbyAdapter fetches jobs from the Ashby public job board API.
type AshbyAdapter struct {
	board
}

// NewAshbyAdapter creates a new adapter for an Ashby job board.
func NewAshbyAdapter(boardToken string, companyName string, client *http.Client) *AshbyAdapter {
	return &AshbyAdapter{board: newBoard(boardToken, companyName, client)}
}

func (a *AshbyAdapter) Source() string { return "ashby:" + a.token }

// FetchJobs retrieves all listed jobs from the Ashby job board and normalizes
// them into the unified Job model.
func (a *AshbyAdapter) FetchJobs(ctx context.Context) ([]model.Job, error) {
	url := fmt.Sprintf("%s/%s", ashbyBaseURL, a.token)

	var ashbyResp ashbyResponse
	if err := doJSON(ctx, a.client, http.MethodGet, url, nil, &ashbyResp, "ashby fetch for "+a.token); err != nil {
		return nil, err
	}

	items, skipped := decodeItems[ashbyJob](ashbyResp.Jobs)
	source := a.Source()

	jobs := make([]model.Job, 0, len(items))
	for _, aj := range items {
		if !aj.IsListed {
			continue
		}
		// Older board payloads omit id; the posting URL is stable enough.
		providerID := aj.ID
		if providerID == "" {
			providerID = aj.JobURL
		}
		if providerID == "" {
			skipped++
			continue
		}

		desc := cleanText(aj.DescriptionPlain)
		if desc == "" {
			desc = extractText(aj.DescriptionHTML)
		}
		desc = truncate(desc, a.descLimit)

		job := model.Job{
			ID:           qualifyID(source, providerID),
			Source:       source,
			Title:        cleanText(aj.Title),
			Company:      a.companyOr(a.token),
			Location:     cleanText(aj.Location),
			Description:  desc,
			URL:          aj.JobURL,
			ContractType: contractType(aj.EmploymentType, aj.Title, desc),
		}

		if aj.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, aj.PublishedAt); err == nil {
				job.PostedAt = &t
			}
		}

		jobs = append(jobs, job)
	}

	a.noteSkipped(source, skipped)
	return jobs, nil
}
