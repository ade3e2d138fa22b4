package adapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amishk599/hirewire/internal/model"
)

func TestFetchJobs_Success(t *testing.T) {
	payload := `{
		"jobs": [
			{
				"id": 12345,
				"title": "Java Full-Stack Developer (C2C)",
				"location": {"name": "Remote, USA"},
				"absolute_url": "https://boards.greenhouse.io/acme/jobs/12345",
				"first_published": "2026-02-10T09:00:00Z",
				"updated_at": "2026-02-13T10:00:00Z",
				"content": "&lt;p&gt;Build things.&lt;/p&gt;"
			},
			{
				"id": 67890,
				"title": "Backend Engineer",
				"location": {"name": "Remote, US"},
				"absolute_url": "https://boards.greenhouse.io/acme/jobs/67890",
				"updated_at": "2026-02-13T11:30:00Z"
			}
		]
	}`
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		jsonHandler(payload)(w, r)
	}))
	defer srv.Close()

	a := newTestAdapter(srv, "acme", "Acme Corp")
	jobs, err := a.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "content=true" {
		t.Errorf("expected content=true query, got %q", gotQuery)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	j := jobs[0]
	if j.ID != "greenhouse:acme:12345" {
		t.Errorf("expected qualified ID, got %s", j.ID)
	}
	if j.Source != "greenhouse:acme" {
		t.Errorf("expected source greenhouse:acme, got %s", j.Source)
	}
	if j.Company != "Acme Corp" {
		t.Errorf("expected company Acme Corp, got %s", j.Company)
	}
	if j.Description != "Build things." {
		t.Errorf("unexpected description %q", j.Description)
	}
	if j.Contract() != "C2C" {
		t.Errorf("expected contract C2C, got %q", j.Contract())
	}
	if j.PostedAt == nil || j.PostedAt.Day() != 10 {
		t.Errorf("expected PostedAt from first_published, got %v", j.PostedAt)
	}

	// Falls back to updated_at when first_published is missing.
	if jobs[1].PostedAt == nil || jobs[1].PostedAt.Day() != 13 {
		t.Errorf("expected PostedAt from updated_at, got %v", jobs[1].PostedAt)
	}
	if jobs[1].ContractType != nil {
		t.Errorf("expected nil contract, got %q", *jobs[1].ContractType)
	}
}

func TestFetchJobs_SkipsMalformedItems(t *testing.T) {
	payload := `{"jobs": [
		{"id": "not-a-number", "title": "Broken"},
		{"id": 1, "title": "Good One", "absolute_url": "https://x/1"},
		{"title": "No ID"}
	]}`
	srv := httptest.NewServer(jsonHandler(payload))
	defer srv.Close()

	jobs, err := newTestAdapter(srv, "acme", "Acme").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Title != "Good One" {
		t.Fatalf("expected only the well-formed item, got %+v", jobs)
	}
}

func TestFetchJobs_CompanyFallsBackToProvider(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"jobs":[{"id":1,"title":"T","company_name":"Provider Co"}]}`))
	defer srv.Close()

	jobs, err := newTestAdapter(srv, "acme", "").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs[0].Company != "Provider Co" {
		t.Errorf("expected provider company, got %q", jobs[0].Company)
	}
}

func TestFetchJobs_TruncatesDescription(t *testing.T) {
	long := strings.Repeat("é", model.DefaultDescriptionLimit+50)
	srv := httptest.NewServer(jsonHandler(`{"jobs":[{"id":1,"title":"T","content":"` + long + `"}]}`))
	defer srv.Close()

	jobs, err := newTestAdapter(srv, "acme", "Acme").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len([]rune(jobs[0].Description)); n != model.DefaultDescriptionLimit {
		t.Errorf("expected %d runes, got %d", model.DefaultDescriptionLimit, n)
	}
}

func TestFetchJobs_EmptyBoard(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"jobs": []}`))
	defer srv.Close()

	jobs, err := newTestAdapter(srv, "empty-co", "Empty Co").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected 0 jobs, got %d", len(jobs))
	}
}

func TestFetchJobs_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{not valid json`))
	defer srv.Close()

	_, err := newTestAdapter(srv, "bad-co", "Bad Co").FetchJobs(context.Background())
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestFetchJobs_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestAdapter(srv, "fail-co", "Fail Co").FetchJobs(context.Background())
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *model.HTTPError, got %v", err)
	}
	if httpErr.StatusCode != 429 || httpErr.RetryAfter.Seconds() != 7 {
		t.Errorf("unexpected error fields: %+v", httpErr)
	}
}

func TestFetchJobs_SkippedItemsAreReported(t *testing.T) {
	payload := `{
		"jobs": [
			{"id": 1, "title": "Java Developer"},
			{"id": "not-a-number", "title": "Broken"},
			{"title": "No ID"}
		]
	}`
	srv := httptest.NewServer(jsonHandler(payload))
	defer srv.Close()

	var logs strings.Builder
	a := newTestAdapter(srv, "acme", "")
	a.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	jobs, err := a.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	out := logs.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "source=greenhouse:acme") || !strings.Contains(out, "skipped=2") {
		t.Errorf("expected a warning with the skipped count, got %q", out)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "double-encoded HTML from Greenhouse API",
			input: "This is the job description. &lt;p&gt;Any HTML included.&lt;/p&gt;",
			want:  "This is the job description. Any HTML included.",
		},
		{
			name:  "typical job description with nested tags and whitespace",
			input: "&lt;p&gt;We are hiring.&lt;/p&gt;\n&lt;ul&gt;\n  &lt;li&gt;Write code&lt;/li&gt;\n  &lt;li&gt;Review PRs&lt;/li&gt;\n&lt;/ul&gt;",
			want:  "We are hiring. Write code Review PRs",
		},
		{
			name:  "adjacent block elements",
			input: "<p>One</p><p>Two</p>",
			want:  "One Two",
		},
		{
			name:  "inline elements do not add spaces",
			input: "<p>Keep it <em>up</em>.</p><p>Pay is <b>$90</b>/hr, <a href=\"x\">apply</a>!</p>",
			want:  "Keep it up. Pay is $90/hr, apply!",
		},
		{
			name:  "line breaks and list items separate words",
			input: "Java<br>Spring<ul><li>AWS</li><li>Kafka</li></ul>",
			want:  "Java Spring AWS Kafka",
		},
		{
			name:  "greater-than in text is preserved",
			input: "<p>salary > 100k</p>",
			want:  "salary > 100k",
		},
		{
			name:  "scripts are dropped",
			input: "<p>Keep</p><script>var x = 1;</script>",
			want:  "Keep",
		},
		{
			name:  "plain text with no HTML",
			input: "No tags here.",
			want:  "No tags here.",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := extractText(tc.input)
			if got != tc.want {
				t.Errorf("extractText(%q)\n got  %q\n want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestContractType(t *testing.T) {
	tests := []struct {
		provided string
		text     string
		want     string
	}{
		{"", "Java Developer - Corp to Corp", "C2C"},
		{"", "Senior Engineer (W2 only)", "W2"},
		{"FullTime", "", "FullTime"},
		{"Full-time", "c2c in text is ignored", "Full-time"},
		{"", "Summer Internship", "Internship"},
		{"", "Internal Tools Engineer", ""},
	}
	for _, tt := range tests {
		got := contractType(tt.provided, tt.text)
		if tt.want == "" {
			if got != nil {
				t.Errorf("contractType(%q, %q) = %q, want nil", tt.provided, tt.text, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("contractType(%q, %q) = %v, want %q", tt.provided, tt.text, got, tt.want)
		}
	}
}

// newTestAdapter creates a GreenhouseAdapter wired to a test server.
func newTestAdapter(srv *httptest.Server, token, company string) *GreenhouseAdapter {
	return NewGreenhouseAdapter(token, company, rewriteClient(srv))
}
