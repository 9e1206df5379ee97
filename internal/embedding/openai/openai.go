package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"docuchat/internal/domain"
	"docuchat/internal/logging"
)

// Client is an OpenAI-compatible embeddings client. It also understands the
// Ollama-native response shape.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	log        *zap.Logger
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// AllowNoKey permits keyless local servers such as Ollama.
	AllowNoKey bool
	MaxRetries int
}

var _ domain.Embedder = (*Client)(nil)

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" && !cfg.AllowNoKey {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrInvalidInput, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-large"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: retries,
		sleep:      sleepCtx,
		log:        logging.OrNop(log),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Embed returns an embedding vector for the given text. Transport errors,
// 429 and 5xx responses are retried with exponential backoff, honouring
// Retry-After.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	type reqBody struct {
		Input  string `json:"input,omitempty"`
		Prompt string `json:"prompt,omitempty"`
		Model  string `json:"model"`
	}
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	data, err := json.Marshal(reqBody{Input: text, Prompt: text, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %w", domain.ErrEmbedding, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt - 1)
			var ra *retryAfterError
			if errors.As(lastErr, &ra) {
				delay = ra.after
			}
			c.log.Debug("retrying embedding request", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
			}
		}

		vec, retry, err := c.once(ctx, url, data)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, lastErr)
}

type retryAfterError struct {
	status string
	after  time.Duration
}

func (e *retryAfterError) Error() string { return "openai embeddings failed: " + e.status }

// once performs a single request and reports whether a failure is retryable.
func (c *Client) once(ctx context.Context, url string, data []byte) ([]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				return nil, true, &retryAfterError{status: resp.Status, after: time.Duration(secs) * time.Second}
			}
		}
		return nil, true, fmt.Errorf("openai embeddings failed: %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("openai embeddings failed: %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	// Try OpenAI-compatible response first
	var openaiOut struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, false, nil
		}
	}
	// Fallback to Ollama-native shape: { "embedding": [...] }
	var ollamaOut struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, false, nil
	}
	return nil, true, errors.New("no embedding returned")
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
