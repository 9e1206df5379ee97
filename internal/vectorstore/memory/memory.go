// Package memory provides an ephemeral in-process similarity store.
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"docuchat/internal/domain"
	"docuchat/internal/logging"
	"docuchat/internal/vectorstore"
)

// Store keeps indexed chunks in insertion order and ranks them by brute-force
// cosine similarity.
type Store struct {
	mu          sync.RWMutex
	items       []vectorstore.Indexed
	embedder    domain.Embedder
	concurrency int
	log         *zap.Logger
}

// New creates an empty store embedding with e. concurrency <= 0 uses
// vectorstore.DefaultEmbedConcurrency.
func New(e domain.Embedder, concurrency int, log *zap.Logger) *Store {
	return &Store{embedder: e, concurrency: concurrency, log: logging.OrNop(log)}
}

var _ vectorstore.Store = (*Store)(nil)

func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	indexed, err := vectorstore.EmbedAll(ctx, s.embedder, chunks, s.concurrency)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items = append(s.items, indexed...)
	total := len(s.items)
	s.mu.Unlock()

	s.log.Info("chunks indexed", zap.Int("added", len(indexed)), zap.Int("total", total))
	return nil
}

func (s *Store) Exists(_ context.Context, filename string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if vectorstore.MatchesSource(it.Chunk.Source.Path, filename) {
			return true
		}
	}
	return false
}

func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, vectorstore.ErrInvalidK
	}
	vec, err := vectorstore.EmbedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, err := vectorstore.Rank(vec, s.items, k)
	if err != nil {
		return nil, err
	}
	s.log.Debug("retrieved", zap.Int("k", k), zap.Int("results", len(results)))
	return results, nil
}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	s.log.Info("store reset")
	return nil
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

func (s *Store) Close() error { return nil }
