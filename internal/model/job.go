package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultDescriptionLimit bounds Job.Description, in runes.
const DefaultDescriptionLimit = 1000

// Job is the canonical representation of a posting from any source.
// Title and Company are always set (possibly to "") so fingerprints stay deterministic.
type Job struct {
	ID           string     // source-qualified, e.g. "greenhouse:acme:12345"
	Source       string     // origin, e.g. "greenhouse:acme"
	Title        string     // job title
	Company      string     // company name
	Location     string     // free-text location
	Description  string     // plain text, truncated
	URL          string     // direct link, may be empty
	ContractType *string    // nullable: "C2C", "W2", "Contract", "Full-time"...
	PostedAt     *time.Time // nullable (not all APIs provide this)
	FetchedAt    time.Time  // set by storage on every upsert; zero on fresh candidates
}

// Contract returns the contract type or "" when unknown.
func (j Job) Contract() string {
	if j.ContractType == nil {
		return ""
	}
	return *j.ContractType
}

// NotificationPayload is the view of a matched Job sent on the realtime channel
// and listed in the digest.
type NotificationPayload struct {
	JobID     string `json:"jobId"`
	Title     string `json:"title"`
	Company   string `json:"company"`
	Location  string `json:"location"`
	URL       string `json:"url"`
	Contract  string `json:"contract"`
	Timestamp int64  `json:"ts"` // unix millis
}

// NewPayload builds the notification view of job stamped with now.
func NewPayload(job Job, now time.Time) NotificationPayload {
	return NotificationPayload{
		JobID:     job.ID,
		Title:     job.Title,
		Company:   job.Company,
		Location:  job.Location,
		URL:       job.URL,
		Contract:  job.Contract(),
		Timestamp: now.UnixMilli(),
	}
}

// JobFetcher fetches job listings from a source (e.g. one Greenhouse board).
type JobFetcher interface {
	FetchJobs(ctx context.Context) ([]Job, error)
}

// JobFilter decides whether a job matches a set of interest criteria.
type JobFilter interface {
	Match(job Job) bool
}

// JobStore durably stores matched jobs.
type JobStore interface {
	Upsert(ctx context.Context, job Job) error
	HealthCheck(ctx context.Context) error
}

// JobReader is the read side of a JobStore, used by debug endpoints and the TUI.
type JobReader interface {
	Recent(ctx context.Context, limit int) ([]Job, error)
}

// Ledger tracks fingerprints that have already been processed.
type Ledger interface {
	// CheckAndMark records fp and reports whether it was unseen before the call.
	// Concurrent calls with the same fp return true at most once.
	CheckAndMark(ctx context.Context, fp string) (bool, error)
	// Unmark forgets fp so a candidate whose persist or fan-out did not finish
	// is seen as new again next cycle. Unmarking an absent fp is not an error.
	Unmark(ctx context.Context, fp string) error
	// Len reports how many fingerprints are currently tracked.
	Len(ctx context.Context) (int, error)
}

// Pruner is implemented by ledgers that can forget fingerprints first seen before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Publisher is the realtime channel (e.g. Redis pub/sub).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// DigestSender dispatches one batched summary message.
type DigestSender interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// Marshal encodes the payload as the JSON published on the realtime channel.
func (p NotificationPayload) Marshal() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal notification payload %s: %w", p.JobID, err)
	}
	return b, nil
}
