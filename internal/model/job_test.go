package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewPayload_JSONShape(t *testing.T) {
	contract := "C2C"
	job := Job{
		ID:           "greenhouse:acme:1",
		Source:       "greenhouse:acme",
		Title:        "Java Full-Stack Developer",
		Company:      "Acme Corp",
		Location:     "Remote, USA",
		URL:          "https://example.com/jobs/1",
		ContractType: &contract,
	}
	now := time.UnixMilli(1700000000123)

	b, err := json.Marshal(NewPayload(job, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"jobId", "title", "company", "location", "url", "contract", "ts"} {
		if _, ok := got[key]; !ok {
			t.Errorf("payload missing key %q: %s", key, b)
		}
	}
	if got["contract"] != "C2C" {
		t.Errorf("contract = %v, want C2C", got["contract"])
	}
	if got["ts"] != float64(1700000000123) {
		t.Errorf("ts = %v, want unix millis", got["ts"])
	}
}

func TestContract_NilIsEmpty(t *testing.T) {
	if got := (Job{}).Contract(); got != "" {
		t.Errorf("Contract() = %q, want empty", got)
	}
}

func TestHTTPError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{404, false},
		{400, false},
	}
	for _, tt := range tests {
		e := &HTTPError{StatusCode: tt.status, Err: errors.New("x")}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("status %d: Retryable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
