// Package qdrant is a similarity store backed by the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docuchat/internal/domain"
	"docuchat/internal/logging"
	"docuchat/internal/vectorstore"
)

const scrollPage = 256

// Config configures a Store.
type Config struct {
	URL              string
	APIKey           string
	Collection       string
	Timeout          time.Duration
	EmbedConcurrency int
}

// Store is a minimal REST client to Qdrant. The collection is created with
// cosine distance on the first Add, sized to the first embedding.
type Store struct {
	url         string
	apiKey      string
	collection  string
	client      *http.Client
	embedder    domain.Embedder
	concurrency int
	log         *zap.Logger

	mu    sync.Mutex
	ready bool
}

var _ vectorstore.Store = (*Store)(nil)

type statusError struct {
	method, url string
	code        int
	status      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func NewStore(cfg Config, e domain.Embedder, log *zap.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", domain.ErrInvalidInput)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = vectorstore.Collection
	}
	return &Store{
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		collection:  collection,
		client:      &http.Client{Timeout: timeout},
		embedder:    e,
		concurrency: cfg.EmbedConcurrency,
		log:         logging.OrNop(log).With(zap.String("collection", collection)),
	}, nil
}

func (s *Store) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// ensureCollection creates the collection if it does not exist yet.
func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if isNotFound(err) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		err = s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
		if err == nil {
			s.log.Info("collection created", zap.Int("dimension", dimension))
		}
	}
	if err != nil {
		return err
	}
	s.ready = true
	return nil
}

type payload struct {
	Source      string `json:"source"`
	Filename    string `json:"filename"`
	PageNumber  int    `json:"page_number"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	StartOffset int    `json:"start_offset"`
	SizeBytes   int64  `json:"size_bytes"`
	UploadedAt  string `json:"uploaded_at"`
	FileType    string `json:"file_type"`
	Text        string `json:"text"`
}

func toPayload(c domain.Chunk) payload {
	return payload{
		Source:      c.Source.Path,
		Filename:    c.Source.Filename,
		PageNumber:  c.PageNumber,
		ChunkIndex:  c.ChunkIndex,
		TotalChunks: c.TotalChunks,
		StartOffset: c.StartOffset,
		SizeBytes:   c.Source.SizeBytes,
		UploadedAt:  c.Source.UploadedAt.UTC().Format(time.RFC3339Nano),
		FileType:    c.Source.FileType,
		Text:        c.Text,
	}
}

func (p payload) chunk() domain.Chunk {
	c := domain.Chunk{
		Text:        p.Text,
		StartOffset: p.StartOffset,
		ChunkIndex:  p.ChunkIndex,
		TotalChunks: p.TotalChunks,
		PageNumber:  p.PageNumber,
		Source: domain.SourceDocument{
			Path:      p.Source,
			Filename:  p.Filename,
			SizeBytes: p.SizeBytes,
			FileType:  p.FileType,
		},
	}
	if t, err := time.Parse(time.RFC3339Nano, p.UploadedAt); err == nil {
		c.Source.UploadedAt = t
	}
	return c
}

func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	indexed, err := vectorstore.EmbedAll(ctx, s.embedder, chunks, s.concurrency)
	if err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, len(indexed[0].Vector)); err != nil {
		return err
	}

	points := make([]map[string]any, len(indexed))
	for i, it := range indexed {
		points[i] = map[string]any{
			"id":      uuid.NewString(),
			"vector":  it.Vector,
			"payload": toPayload(it.Chunk),
		}
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return err
	}
	s.log.Info("chunks indexed", zap.Int("added", len(points)))
	return nil
}

// Exists scrolls every stored source path and applies the substring rule.
func (s *Store) Exists(ctx context.Context, filename string) bool {
	if filename == "" {
		return false
	}
	var offset any
	for {
		req := map[string]any{
			"limit":        scrollPage,
			"with_payload": []string{"source"},
			"with_vector":  false,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload struct {
						Source string `json:"source"`
					} `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp)
		if isNotFound(err) {
			return false
		}
		if err != nil {
			s.log.Warn("exists check failed", zap.String("filename", filename), zap.Error(err))
			return false
		}
		for _, p := range resp.Result.Points {
			if vectorstore.MatchesSource(p.Payload.Source, filename) {
				return true
			}
		}
		if resp.Result.NextPageOffset == nil {
			return false
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, vectorstore.ErrInvalidK
	}
	vec, err := vectorstore.EmbedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	err = s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
	if isNotFound(err) {
		return []domain.SearchResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{Chunk: r.Payload.chunk(), Score: r.Score})
	}
	return results, nil
}

// Reset drops the collection. A missing collection is not an error.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if err != nil && !isNotFound(err) {
		return err
	}
	s.ready = false
	s.log.Info("store reset")
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) do(ctx context.Context, method, url string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding qdrant request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
