package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/hirewire/internal/model"
)

const (
	workdayPageSize = 20
	// workdayDetailLimit bounds the per-listing detail round trips per fetch.
	workdayDetailLimit = 10
)

// workdayListingResponse is the response from the Workday jobs listing endpoint.
type workdayListingResponse struct {
	Total       int               `json:"total"`
	JobPostings []json.RawMessage `json:"jobPostings"`
}

type workdayListing struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	BulletFields  []string `json:"bulletFields"`
}

// workdayDetailResponse is the response from the Workday job detail endpoint.
type workdayDetailResponse struct {
	JobPostingInfo workdayJobDetail `json:"jobPostingInfo"`
}

type workdayJobDetail struct {
	JobDescription      string   `json:"jobDescription"`
	Location            string   `json:"location"`
	AdditionalLocations []string `json:"additionalLocations"`
	TimeType            string   `json:"timeType"`
}

// workdayListingRequest is the POST body for the Workday jobs listing endpoint.
type workdayListingRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

// WorkdayAdapter fetches the first page of listings from a Workday career
// site. siteURL is the cxs endpoint, e.g.
// https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/External.
type WorkdayAdapter struct {
	board
	siteURL   string
	publicURL string
}

// NewWorkdayAdapter creates a new adapter for a Workday career site.
func NewWorkdayAdapter(siteURL string, companyName string, client *http.Client) *WorkdayAdapter {
	siteURL = strings.TrimRight(siteURL, "/")
	tenant, public := parseWorkdaySite(siteURL)
	return &WorkdayAdapter{
		board:     newBoard(tenant, companyName, client),
		siteURL:   siteURL,
		publicURL: public,
	}
}

func (a *WorkdayAdapter) Source() string { return "workday:" + a.token }

// FetchJobs posts a single listing query, then fetches the detail page of the
// first workdayDetailLimit listings to fill in Description. A failed detail
// fetch keeps the listing-level job; listings past the bound carry no
// description.
func (a *WorkdayAdapter) FetchJobs(ctx context.Context) ([]model.Job, error) {
	body := workdayListingRequest{
		AppliedFacets: map[string]any{},
		Limit:         workdayPageSize,
	}

	var listResp workdayListingResponse
	if err := doJSON(ctx, a.client, http.MethodPost, a.siteURL+"/jobs", body, &listResp, "workday listing fetch for "+a.token); err != nil {
		return nil, err
	}

	items, skipped := decodeItems[workdayListing](listResp.JobPostings)
	source := a.Source()
	details := 0

	jobs := make([]model.Job, 0, len(items))
	for _, l := range items {
		if l.ExternalPath == "" {
			skipped++
			continue
		}
		job := model.Job{
			ID:       qualifyID(source, l.ExternalPath),
			Source:   source,
			Title:    cleanText(l.Title),
			Company:  a.companyOr(a.token),
			Location: cleanText(l.LocationsText),
			URL:      a.publicURL + l.ExternalPath,
			PostedAt: parsePostedOn(l.PostedOn, time.Now()),
		}
		signals := append([]string{l.Title}, l.BulletFields...)

		if details < workdayDetailLimit {
			details++
			detail, err := a.fetchDetail(ctx, l.ExternalPath)
			switch {
			case err != nil && ctx.Err() != nil:
				return nil, err
			case err != nil:
				a.logger.Warn("workday detail fetch failed", "kind", "source", "source", source, "path", l.ExternalPath, "error", err)
			default:
				job.Description = truncate(extractText(detail.JobDescription), a.descLimit)
				if loc := workdayLocation(detail); loc != "" {
					job.Location = loc
				}
				signals = append(signals, detail.TimeType, job.Description)
			}
		}
		job.ContractType = contractType("", signals...)
		jobs = append(jobs, job)
	}

	a.noteSkipped(source, skipped)
	return jobs, nil
}

func (a *WorkdayAdapter) fetchDetail(ctx context.Context, externalPath string) (workdayJobDetail, error) {
	var resp workdayDetailResponse
	if err := doJSON(ctx, a.client, http.MethodGet, a.siteURL+externalPath, nil, &resp, "workday detail fetch for "+a.token); err != nil {
		return workdayJobDetail{}, err
	}
	return resp.JobPostingInfo, nil
}

func workdayLocation(d workdayJobDetail) string {
	parts := make([]string, 0, 1+len(d.AdditionalLocations))
	for _, l := range append([]string{d.Location}, d.AdditionalLocations...) {
		if l = cleanText(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "; ")
}

// parseWorkdaySite derives the tenant slug and the public job-page prefix from
// a cxs endpoint. Unrecognized URLs fall back to the host and the URL itself.
func parseWorkdaySite(siteURL string) (tenant, public string) {
	u, err := url.Parse(siteURL)
	if err != nil || u.Host == "" {
		return siteURL, siteURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// wday / cxs / {tenant} / {site}
	if len(parts) >= 4 && parts[0] == "wday" && parts[1] == "cxs" {
		return parts[2], u.Scheme + "://" + u.Host + "/" + parts[3]
	}
	return strings.SplitN(u.Host, ".", 2)[0], siteURL
}

var daysAgoRegex = regexp.MustCompile(`^Posted (\d+)\+? Days? Ago$`)

// parsePostedOn converts a Workday relative date string to an approximate
// timestamp anchored at midnight UTC of now.
func parsePostedOn(postedOn string, now time.Time) *time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch postedOn {
	case "Posted Today":
		return &today
	case "Posted Yesterday":
		t := today.AddDate(0, 0, -1)
		return &t
	}

	if n, ok := parseDaysAgo(postedOn); ok {
		t := today.AddDate(0, 0, -n)
		return &t
	}
	return nil
}

func parseDaysAgo(s string) (int, bool) {
	matches := daysAgoRegex.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
