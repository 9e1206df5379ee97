// Package embedding holds embedding providers and the shared LRU cache that
// wraps them.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"docuchat/internal/domain"
	"docuchat/internal/logging"
)

// Cached memoises another embedder's vectors for identical texts.
type Cached struct {
	next  domain.Embedder
	cache *expirable.LRU[string, []float32]
	log   *zap.Logger
}

// WithCache wraps e in an LRU cache holding size entries for ttl. A zero
// size or ttl disables caching and returns e unchanged.
func WithCache(e domain.Embedder, size int, ttl time.Duration, log *zap.Logger) domain.Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &Cached{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
		log:   logging.OrNop(log),
	}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.next.Name(), text)
	if v, ok := c.cache.Get(key); ok {
		c.log.Debug("embedding cache hit", zap.String("embedder", c.next.Name()))
		return clone(v), nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, clone(v))
	return v, nil
}

// Len reports the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func clone(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
