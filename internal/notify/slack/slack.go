// Package slack sends emergency escalation notifications to Slack via
// incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/intake/internal/triage"
)

const (
	maxSymptomsLen = 2000
	httpTimeout    = 10 * time.Second
)

// Notifier posts escalated triage sessions to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts an escalated session to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, sess *triage.Session) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(sess)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(s *triage.Session) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(s),
			{"type": "divider"},
			fieldsBlock(s),
			{"type": "divider"},
			symptomsBlock(s),
			{"type": "divider"},
			contextBlock(s),
		},
	}
}

func headerBlock(s *triage.Session) map[string]any {
	text := fmt.Sprintf("%s Emergency triage escalation", urgencyEmoji(s.Urgency))

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(s *triage.Session) map[string]any {
	departments := strings.Join(s.RecommendedDepartments, ", ")
	if departments == "" {
		departments = "_pending_"
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Urgency:* %s", s.Urgency),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*State:* %s", s.State),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Departments:* %s", departments),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Turns:* %d", len(s.History)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func symptomsBlock(s *triage.Session) map[string]any {
	text := truncate(strings.Join(s.Symptoms, "\n• "), maxSymptomsLen)
	if text == "" {
		text = "_No symptoms recorded._"
	} else {
		text = "• " + text
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reported symptoms*\n\n%s", text),
		},
	}
}

func contextBlock(s *triage.Session) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("intake • session %s • %s", s.ID, s.UpdatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func urgencyEmoji(u triage.Urgency) string {
	switch u {
	case triage.UrgencyEmergency:
		return "\U0001f534" // red circle
	case triage.UrgencyUrgent:
		return "\U0001f7e0" // orange circle
	case triage.UrgencyAttention:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
