package assistant

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	DefaultModel       = "gemini-2.0-flash"
	defaultTemperature = float32(0.2)
)

type GeminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(defaultTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return result.Text(), nil
}
