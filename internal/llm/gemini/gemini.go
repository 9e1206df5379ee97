// Package gemini generates answers with the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"docuchat/internal/domain"
)

const defaultModel = "gemini-2.5-flash"

type Config struct {
	APIKeyEnv   string
	Model       string
	Temperature float32
	MaxTokens   int32
}

type generateFunc func(ctx context.Context, prompt string) (string, error)

// Generator wraps models.generateContent.
type Generator struct {
	generate generateFunc
}

var _ domain.Generator = (*Generator)(nil)

func New(ctx context.Context, cfg Config) (*Generator, error) {
	key := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrInvalidInput, cfg.APIKeyEnv)
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	temperature := cfg.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}

	return &Generator{generate: func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(
			ctx,
			model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			config,
		)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Text()), nil
	}}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", domain.ErrModelInvocation, err)
	}
	return out, nil
}
