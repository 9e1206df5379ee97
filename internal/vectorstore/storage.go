// Package vectorstore defines the similarity store contract shared by the
// memory, sqlite and qdrant backends.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"docuchat/internal/domain"
)

// Collection is the fixed name of the chunk collection in durable backends.
const Collection = "document_chunks"

// DefaultEmbedConcurrency bounds parallel embedding calls during Add.
const DefaultEmbedConcurrency = 4

// ErrInvalidK is returned by Retrieve for a non-positive k.
var ErrInvalidK = errors.New("k must be positive")

// Store indexes chunks and answers similarity queries.
type Store interface {
	// Add embeds and indexes every chunk. Either all chunks are committed or
	// none are.
	Add(ctx context.Context, chunks []domain.Chunk) error
	// Exists reports whether any stored chunk's source contains filename.
	// Failures are reported as false.
	Exists(ctx context.Context, filename string) bool
	// Retrieve returns at most k chunks ordered by descending similarity.
	Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Indexed is a chunk together with its embedding.
type Indexed struct {
	Chunk  domain.Chunk
	Vector []float32
}

// EmbedAll embeds chunk texts with at most limit concurrent calls. The
// returned vectors are index-aligned with chunks.
func EmbedAll(ctx context.Context, e domain.Embedder, chunks []domain.Chunk, limit int) ([]Indexed, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if limit <= 0 {
		limit = DefaultEmbedConcurrency
	}

	out := make([]Indexed, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range chunks {
		g.Go(func() error {
			vec, err := e.Embed(gctx, chunks[i].Text)
			if err != nil {
				return embeddingError(fmt.Sprintf("chunk %d of %s", chunks[i].ChunkIndex, chunks[i].Source.Filename), err)
			}
			out[i] = Indexed{Chunk: chunks[i], Vector: vec}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedQuery embeds a query, wrapping failures in domain.ErrEmbedding.
func EmbedQuery(ctx context.Context, e domain.Embedder, query string) ([]float32, error) {
	vec, err := e.Embed(ctx, query)
	if err != nil {
		return nil, embeddingError("query", err)
	}
	return vec, nil
}

// embeddingError tags err with domain.ErrEmbedding unless an embedder
// already did.
func embeddingError(what string, err error) error {
	if errors.Is(err, domain.ErrEmbedding) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrEmbedding, what, err)
}

// Rank scores items against query and returns the best k. Equal scores keep
// the order of items.
func Rank(query []float32, items []Indexed, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	results := make([]domain.SearchResult, len(items))
	for i, it := range items {
		results[i] = domain.SearchResult{Chunk: it.Chunk, Score: Cosine(query, it.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Cosine returns the cosine similarity of a and b over their common prefix,
// or 0 when either vector has zero norm.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MatchesSource applies the dedup rule: the stored source path contains the
// filename. An empty filename never matches.
func MatchesSource(source, filename string) bool {
	return filename != "" && strings.Contains(source, filename)
}
