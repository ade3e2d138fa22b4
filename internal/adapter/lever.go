package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	HostedURL        string          `json:"hostedUrl"`
}

// LeverAdapter fetches jobs from the Lever public postings API.
type LeverAdapter struct {
	board
}

// NewLeverAdapter creates a new adapter for a Lever board.
func NewLeverAdapter(companySlug string, companyName string, client *http.Client) *LeverAdapter {
	return &LeverAdapter{board: newBoard(companySlug, companyName, client)}
}

func (a *LeverAdapter) Source() string { return "lever:" + a.token }

// FetchJobs retrieves all jobs from the Lever board and normalizes them
// into the unified Job model.
func (a *LeverAdapter) FetchJobs(ctx context.Context) ([]model.Job, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, a.token)

	var raw []json.RawMessage
	if err := doJSON(ctx, a.client, http.MethodGet, url, nil, &raw, "lever fetch for "+a.token); err != nil {
		return nil, err
	}

	items, skipped := decodeItems[leverJob](raw)
	source := a.Source()

	jobs := make([]model.Job, 0, len(items))
	for _, lj := range items {
		if lj.ID == "" {
			skipped++
			continue
		}

		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		desc := cleanText(lj.DescriptionPlain)
		if desc == "" {
			desc = extractText(lj.Description)
		}
		desc = truncate(desc, a.descLimit)

		job := model.Job{
			ID:           qualifyID(source, lj.ID),
			Source:       source,
			Title:        cleanText(lj.Text),
			Company:      a.companyOr(a.token),
			Location:     cleanText(location),
			Description:  desc,
			URL:          lj.HostedURL,
			ContractType: contractType(lj.Categories.Commitment, lj.Text, desc),
		}

		// createdAt is Unix milliseconds.
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt).UTC()
			job.PostedAt = &t
		}

		jobs = append(jobs, job)
	}

	a.noteSkipped(source, skipped)
	return jobs, nil
}
