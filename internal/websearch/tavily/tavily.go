// Package tavily queries the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"docuchat/internal/domain"
	"docuchat/internal/logging"
)

const (
	DefaultBaseURL    = "https://api.tavily.com"
	DefaultMaxResults = 2
)

// Config configures a Client.
type Config struct {
	APIKeyEnv  string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

// Client returns search results rendered as plain text for a prompt.
type Client struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	maxResults int
	log        *zap.Logger
}

var _ domain.Searcher = (*Client)(nil)

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// New returns domain.ErrSearchUnavailable when the API key is not set.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	key := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	if key == "" {
		return nil, fmt.Errorf("%w: %s is not set", domain.ErrSearchUnavailable, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     key,
		maxResults: cfg.MaxResults,
		log:        logging.OrNop(log),
	}, nil
}

func (c *Client) Search(ctx context.Context, query string) (string, error) {
	c.log.Info("searching external resources", zap.String("query", truncate(query, 50)))
	out, err := c.search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: tavily: %w", domain.ErrSearch, err)
	}
	c.log.Info("external search completed", zap.Int("chars", len(out)))
	return out, nil
}

func (c *Client) search(ctx context.Context, query string) (string, error) {
	data, err := json.Marshal(searchRequest{Query: query, MaxResults: c.maxResults, SearchDepth: "basic"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return render(out), nil
}

func render(r searchResponse) string {
	blocks := make([]string, 0, len(r.Results)+1)
	if a := strings.TrimSpace(r.Answer); a != "" {
		blocks = append(blocks, "Summary: "+a)
	}
	for _, res := range r.Results {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nURL: %s\nContent: %s",
			strings.TrimSpace(res.Title), res.URL, strings.TrimSpace(res.Content)))
	}
	if len(blocks) == 0 {
		return "No external results found."
	}
	return strings.Join(blocks, "\n\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
