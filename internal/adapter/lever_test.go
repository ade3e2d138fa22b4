package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLeverAdapter_FetchJobs_Success(t *testing.T) {
	payload := `[
		{
			"id": "ff7ef527-b0d3-4c44-836a-8d6b58ac321e",
			"text": "Software Engineer",
			"description": "<div>Full HTML description</div>",
			"descriptionPlain": "Plain text job description",
			"categories": {
				"team": "Engineering",
				"location": "San Francisco, CA",
				"commitment": "Contract",
				"allLocations": ["San Francisco, CA", "Remote"]
			},
			"createdAt": 1769784074110,
			"hostedUrl": "https://jobs.lever.co/acme/ff7ef527-b0d3-4c44-836a-8d6b58ac321e"
		},
		{
			"id": "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			"text": "Backend Engineer",
			"description": "<div>Backend <b>job</b> description</div>",
			"categories": {"location": "Remote"},
			"createdAt": 1769870474110,
			"hostedUrl": "https://jobs.lever.co/acme/a1b2c3d4-e5f6-7890-abcd-ef1234567890"
		}
	]`
	srv := httptest.NewServer(jsonHandler(payload))
	defer srv.Close()

	jobs, err := newLeverTestAdapter(srv, "acme", "Acme Corp").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	j := jobs[0]
	if j.ID != "lever:acme:ff7ef527-b0d3-4c44-836a-8d6b58ac321e" {
		t.Errorf("unexpected ID %s", j.ID)
	}
	if j.Source != "lever:acme" {
		t.Errorf("expected source lever:acme, got %s", j.Source)
	}
	if j.Location != "San Francisco, CA, Remote" {
		t.Errorf("expected location 'San Francisco, CA, Remote', got %s", j.Location)
	}
	if j.Description != "Plain text job description" {
		t.Errorf("expected plain description, got %q", j.Description)
	}
	if j.Contract() != "Contract" {
		t.Errorf("expected contract from commitment, got %q", j.Contract())
	}
	expected := time.UnixMilli(1769784074110).UTC()
	if j.PostedAt == nil || !j.PostedAt.Equal(expected) {
		t.Errorf("expected PostedAt %v, got %v", expected, j.PostedAt)
	}

	// No descriptionPlain: the HTML is flattened instead.
	if jobs[1].Description != "Backend job description" {
		t.Errorf("expected flattened HTML description, got %q", jobs[1].Description)
	}
	if jobs[1].Location != "Remote" {
		t.Errorf("expected location Remote, got %s", jobs[1].Location)
	}
}

func TestLeverAdapter_FetchJobs_SkipsMalformedItems(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`[{"id": 5, "text": "bad"}, {"id": "ok", "text": "Fine"}]`))
	defer srv.Close()

	jobs, err := newLeverTestAdapter(srv, "acme", "Acme").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "lever:acme:ok" {
		t.Fatalf("expected one job, got %+v", jobs)
	}
}

func TestLeverAdapter_FetchJobs_EmptyBoard(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`[]`))
	defer srv.Close()

	jobs, err := newLeverTestAdapter(srv, "empty", "Empty").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected 0 jobs, got %d", len(jobs))
	}
}

func TestLeverAdapter_FetchJobs_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := newLeverTestAdapter(srv, "gone", "Gone").FetchJobs(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 404, got nil")
	}
}

func newLeverTestAdapter(srv *httptest.Server, slug, company string) *LeverAdapter {
	return NewLeverAdapter(slug, company, rewriteClient(srv))
}
