// Package gemini embeds text with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"docuchat/internal/domain"
)

const defaultModel = "text-embedding-004"

// Config configures the Gemini embedder.
type Config struct {
	APIKeyEnv string
	Model     string
	// TaskType is forwarded as the embedding task type when set.
	TaskType string
}

type embedFunc func(ctx context.Context, text string) ([]float32, error)

// Embedder calls models.embedContent for every text.
type Embedder struct {
	model string
	embed embedFunc
}

var _ domain.Embedder = (*Embedder)(nil)

// New creates an embedder. The API key is read from cfg.APIKeyEnv.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	key := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrInvalidInput, cfg.APIKeyEnv)
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	var config *genai.EmbedContentConfig
	if cfg.TaskType != "" {
		config = &genai.EmbedContentConfig{TaskType: cfg.TaskType}
	}

	return &Embedder{
		model: model,
		embed: func(ctx context.Context, text string) ([]float32, error) {
			resp, err := client.Models.EmbedContent(
				ctx,
				model,
				[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
				config,
			)
			if err != nil {
				return nil, err
			}
			if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
				return nil, errors.New("no embedding values returned")
			}
			return resp.Embeddings[0].Values, nil
		},
	}, nil
}

func (e *Embedder) Name() string { return "gemini:" + e.model }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", domain.ErrEmbedding, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: gemini returned an empty vector", domain.ErrEmbedding)
	}
	return v, nil
}
