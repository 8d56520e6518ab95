package claude

import (
	"testing"

	"github.com/linnemanlabs/intake/internal/triage"
)

func TestParseExtraction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		raw      string
		wantErr  bool
		symptoms int
		urgency  triage.Urgency
		question string
	}{
		{
			name:     "plain object",
			raw:      `{"symptoms":["headache","nausea"],"urgency":"attention","follow_up_question":"Since when?"}`,
			symptoms: 2,
			urgency:  triage.UrgencyAttention,
			question: "Since when?",
		},
		{
			name:     "code fence",
			raw:      "```json\n{\"symptoms\":[\"chest pain\"],\"urgency\":\"emergency\",\"follow_up_question\":\"\"}\n```",
			symptoms: 1,
			urgency:  triage.UrgencyEmergency,
		},
		{
			name:     "surrounding prose",
			raw:      `Here is the structured result: {"symptoms":[],"urgency":"normal","follow_up_question":" How severe is it? "} Hope that helps.`,
			urgency:  triage.UrgencyNormal,
			question: "How severe is it?",
		},
		{
			name:    "no json",
			raw:     "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "truncated json",
			raw:     `{"symptoms":["headache"`,
			wantErr: true,
		},
		{
			name:    "unknown urgency",
			raw:     `{"symptoms":[],"urgency":"critical","follow_up_question":""}`,
			wantErr: true,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			ext, err := parseExtraction(c.raw)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", ext)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseExtraction: %v", err)
			}
			if len(ext.Symptoms) != c.symptoms {
				t.Errorf("symptoms = %v, want %d entries", ext.Symptoms, c.symptoms)
			}
			if ext.SuggestedUrgency != c.urgency {
				t.Errorf("urgency = %v, want %v", ext.SuggestedUrgency, c.urgency)
			}
			if ext.FollowUpQuestion != c.question {
				t.Errorf("question = %q, want %q", ext.FollowUpQuestion, c.question)
			}
		})
	}
}

func TestBuildMessages(t *testing.T) {
	t.Parallel()

	history := []triage.Turn{
		{Role: triage.RoleAssistant, Content: "hello"},
		{Role: triage.RoleUser, Content: "my head hurts"},
		{Role: triage.RoleAssistant, Content: "since when?"},
	}

	msgs := buildMessages(history, "since yesterday")
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	// roles alternate with the transcript; the latest message is last and from the user
	if msgs[0].Role != "assistant" || msgs[1].Role != "user" || msgs[2].Role != "assistant" || msgs[3].Role != "user" {
		t.Errorf("roles = %s %s %s %s", msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role)
	}
}
