package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// TextModel generates short prose with a chat model. It backs the summary
// stage; the summarizer falls back to a template when a call fails.
type TextModel struct {
	llm         llms.Model
	maxTokens   int
	temperature float64
}

// NewTextModel builds the OpenAI-backed prose generator.
func NewTextModel(apiKey, model string, maxTokens int, temperature float64) (*TextModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("text model: api key required")
	}
	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("create text model: %w", err)
	}
	return &TextModel{llm: llm, maxTokens: maxTokens, temperature: temperature}, nil
}

// Generate returns the model's completion for prompt, trimmed.
func (t *TextModel) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := llms.GenerateFromSinglePrompt(ctx, t.llm, prompt,
		llms.WithMaxTokens(t.maxTokens),
		llms.WithTemperature(t.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
