// Package claude implements triage.Extractor on the Anthropic API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/intake/internal/triage"
)

const responseTokens = 1024

const systemPrompt = `You are the language-understanding component of a hospital triage assistant.
Given the conversation so far and the patient's latest message, respond with ONLY a JSON object:

{
  "symptoms": ["short normalized symptom phrases from the latest message"],
  "urgency": "normal" | "attention" | "urgent" | "emergency",
  "follow_up_question": "one concise clarification question to ask next"
}

Rules:
- symptoms: only what the latest message states or clearly implies, lowercase, no duplicates.
- urgency: "emergency" only for life-threatening signs (chest pain, trouble breathing, loss of consciousness, severe bleeding, stroke signs).
- follow_up_question: ask about duration, severity, or associated symptoms not yet covered. Never give a diagnosis.
- Output the JSON object and nothing else.`

// Extractor calls Claude to turn patient utterances into structured
// symptom extractions.
type Extractor struct {
	client anthropic.Client
	model  string
	logger log.Logger
}

// New creates an Extractor with the given API key and model name.
func New(apiKey, model string, logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Extractor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}
}

// Extract implements triage.Extractor. The context deadline set by the
// engine bounds the API call.
func (e *Extractor) Extract(ctx context.Context, history []triage.Turn, latest string) (*triage.Extraction, error) {
	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: responseTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: buildMessages(history, latest),
	})
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	ext, err := parseExtraction(text.String())
	if err != nil {
		e.logger.Warn(ctx, "malformed extraction from model", "error", err, "raw_len", text.Len())
		return nil, err
	}

	e.logger.Info(ctx, "extraction",
		"symptoms", len(ext.Symptoms),
		"urgency", ext.SuggestedUrgency.String(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return ext, nil
}

// buildMessages replays the transcript so the model sees what was
// already asked, with the latest patient message last.
func buildMessages(history []triage.Turn, latest string) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		switch t.Role {
		case triage.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		case triage.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(latest)))
}

// extractionWire is the JSON shape the model is instructed to produce.
type extractionWire struct {
	Symptoms         []string `json:"symptoms"`
	Urgency          string   `json:"urgency"`
	FollowUpQuestion string   `json:"follow_up_question"`
}

// parseExtraction decodes the model output, tolerating surrounding prose
// and markdown code fences. A response with no parseable JSON object is
// an error: the engine treats it as a retryable upstream failure.
func parseExtraction(raw string) (*triage.Extraction, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var wire extractionWire
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	urgency, err := triage.ParseUrgency(wire.Urgency)
	if err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	return &triage.Extraction{
		Symptoms:         wire.Symptoms,
		SuggestedUrgency: urgency,
		FollowUpQuestion: strings.TrimSpace(wire.FollowUpQuestion),
	}, nil
}
