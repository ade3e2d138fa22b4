package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

const (
	smartRecruitersBaseURL  = "https://api.smartrecruiters.com/v1/companies"
	smartRecruitersPageSize = 100
)

type smartRecruitersResponse struct {
	Content    []json.RawMessage `json:"content"`
	TotalFound int               `json:"totalFound"`
}

type smartRecruitersPosting struct {
	ID           string `json:"id"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	ReleasedDate string `json:"releasedDate"`
	Company      struct {
		Name string `json:"name"`
	} `json:"company"`
	Location struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
	TypeOfEmployment struct {
		Label string `json:"label"`
	} `json:"typeOfEmployment"`
}

// SmartRecruitersAdapter fetches the first page of postings from the
// SmartRecruiters public postings API.
type SmartRecruitersAdapter struct {
	board
}

// NewSmartRecruitersAdapter creates a new adapter for a SmartRecruiters company.
func NewSmartRecruitersAdapter(slug string, companyName string, client *http.Client) *SmartRecruitersAdapter {
	return &SmartRecruitersAdapter{board: newBoard(slug, companyName, client)}
}

func (a *SmartRecruitersAdapter) Source() string { return "smartrecruiters:" + a.token }

// FetchJobs retrieves postings and normalizes them into the unified Job model.
func (a *SmartRecruitersAdapter) FetchJobs(ctx context.Context) ([]model.Job, error) {
	u := fmt.Sprintf("%s/%s/postings?limit=%d&offset=0", smartRecruitersBaseURL, url.PathEscape(a.token), smartRecruitersPageSize)

	var srResp smartRecruitersResponse
	if err := doJSON(ctx, a.client, http.MethodGet, u, nil, &srResp, "smartrecruiters fetch for "+a.token); err != nil {
		return nil, err
	}

	items, skipped := decodeItems[smartRecruitersPosting](srResp.Content)
	source := a.Source()

	jobs := make([]model.Job, 0, len(items))
	for _, p := range items {
		id := firstNonEmpty(p.ID, p.UUID)
		title := cleanText(p.Name)
		if id == "" || title == "" {
			skipped++
			continue
		}

		loc := strings.Join(nonEmpty(p.Location.City, p.Location.Region, p.Location.Country), ", ")
		if p.Location.Remote {
			loc = strings.Join(nonEmpty("Remote", loc), ", ")
		}

		job := model.Job{
			ID:           qualifyID(source, id),
			Source:       source,
			Title:        title,
			Company:      a.companyOr(p.Company.Name),
			Location:     loc,
			URL:          fmt.Sprintf("https://jobs.smartrecruiters.com/%s/%s", a.token, id),
			ContractType: contractType(p.TypeOfEmployment.Label, p.Name),
		}

		if p.ReleasedDate != "" {
			if t, err := time.Parse(time.RFC3339, p.ReleasedDate); err == nil {
				job.PostedAt = &t
			}
		}

		jobs = append(jobs, job)
	}

	a.noteSkipped(source, skipped)
	return jobs, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
