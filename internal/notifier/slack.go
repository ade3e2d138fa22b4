package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amishk599/hirewire/internal/model"
)

const (
	// Slack rejects section text longer than this many characters.
	slackTextLimit = 3000
	// slackMaxRetryAfter caps how long a 429 may hold up the cycle.
	slackMaxRetryAfter = 30 * time.Second
)

var _ model.DigestSender = (*SlackDigestSender)(nil)

// SlackDigestSender posts the digest to a Slack channel via an Incoming Webhook.
type SlackDigestSender struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	maxWait    time.Duration
}

// NewSlackDigestSender returns a sender that posts one Block Kit message per digest.
func NewSlackDigestSender(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackDigestSender {
	return &SlackDigestSender{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
		maxWait:    slackMaxRetryAfter,
	}
}

// Send posts the digest once. A 429 is retried a single time after Retry-After.
func (s *SlackDigestSender) Send(ctx context.Context, recipients []string, subject, body string) error {
	payload, err := json.Marshal(buildPayload(recipients, subject, body))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, payload)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		retryAfter = min(retryAfter, s.maxWait)
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		t := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("slack retry cancelled: %w", ctx.Err())
		case <-t.C:
		}

		status, _, err = s.post(ctx, payload)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack digest sent", "subject", subject, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack digest sent", "subject", subject)
	return nil
}

func (s *SlackDigestSender) post(ctx context.Context, payload []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildPayload(recipients []string, subject, body string) slackPayload {
	// The first line of the body repeats the subject.
	_, rest, found := strings.Cut(body, "\n\n")
	if !found {
		rest = body
	}
	if utf8.RuneCountInString(rest) > slackTextLimit {
		rest = string([]rune(rest)[:slackTextLimit-3]) + "..."
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🚀 " + subject},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: rest},
		},
	}
	if len(recipients) > 0 {
		blocks = append(blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: "For: " + strings.Join(recipients, ", ")}},
		})
	}
	blocks = append(blocks, slackBlock{Type: "divider"})

	return slackPayload{Text: subject, Blocks: blocks}
}
