package refinement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rpattn/reportvc/internal/domain"
)

const draftSystemPrompt = `You are a due-diligence report editor. You receive the current report content as JSON and an instruction describing a refinement. Respond with a single JSON object:
{"section": "<dot-separated path of the section to change>", "change_type": "append"|"replace"|"remove", "current_text": "<text currently at the section, if any>", "proposed_text": "<the new text>", "reasoning": "<one or two sentences explaining the edit>"}
Target exactly one section. Do not invent sections that are not present in the report unless the instruction asks for a new one.`

// OpenAIProvider drafts refinement proposals through the OpenAI chat
// completion API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider for the given API key and model.
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is not configured")
	}
	if model == "" {
		model = openai.GPT4oMini
		slog.Warn("provider model not set, using default", "model", model)
	}
	slog.Info("initializing openai generation provider", "model", model)
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Generate implements GenerationProvider.
func (p *OpenAIProvider) Generate(ctx context.Context, content map[string]any, prompt string) (Draft, error) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return Draft{}, fmt.Errorf("%w: marshal report content: %v", domain.ErrGeneration, err)
	}

	slog.Debug("requesting refinement draft", "model", p.model)
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: draftSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Report content:\n%s\n\nInstruction:\n%s", contentJSON, prompt)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		slog.Error("openai draft request failed", "error", err)
		return Draft{}, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return Draft{}, fmt.Errorf("%w: provider returned no choices", domain.ErrGeneration)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &draft); err != nil {
		slog.Error("openai draft is not valid JSON", "error", err)
		return Draft{}, fmt.Errorf("%w: malformed draft: %v", domain.ErrGeneration, err)
	}

	slog.Debug("received refinement draft", "section", draft.Section, "change_type", draft.ChangeType)
	return draft, nil
}
