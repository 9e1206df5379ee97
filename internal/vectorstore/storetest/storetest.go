// Package storetest holds a behaviour suite run against every
// vectorstore.Store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
	"docuchat/internal/vectorstore"
)

// LetterEmbedder maps text to its a-z letter histogram. Texts containing
// FailMarker fail to embed.
type LetterEmbedder struct {
	mu    sync.Mutex
	calls int
}

// FailMarker makes LetterEmbedder return an error.
const FailMarker = "<<fail>>"

func (e *LetterEmbedder) Name() string { return "letters" }

func (e *LetterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if strings.Contains(text, FailMarker) {
		return nil, errors.New("embedding backend refused input")
	}
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

// Calls returns the number of Embed invocations.
func (e *LetterEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T, e domain.Embedder) vectorstore.Store

// Chunks builds annotated chunks of a single document, one per text.
func Chunks(path string, texts ...string) []domain.Chunk {
	doc := domain.SourceDocument{
		Path:     path,
		Filename: path[strings.LastIndex(path, "/")+1:],
		FileType: domain.FileTypePDF,
	}
	out := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		out[i] = domain.Chunk{
			Text:        t,
			ChunkIndex:  i,
			TotalChunks: len(texts),
			PageNumber:  i + 1,
			Source:      doc,
		}
	}
	return out
}

// Run exercises the Store contract.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("ExistsBeforeAndAfterAdd", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		assert.False(t, s.Exists(ctx, "manual.pdf"))

		require.NoError(t, s.Add(ctx, Chunks("/uploads/manual.pdf", "alpha", "beta")))
		assert.True(t, s.Exists(ctx, "manual.pdf"))
		assert.False(t, s.Exists(ctx, "other.pdf"))
		assert.False(t, s.Exists(ctx, ""))
	})

	t.Run("ExistsIsSubstringMatch", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		require.NoError(t, s.Add(ctx, Chunks("/uploads/final_report.pdf", "numbers")))
		assert.True(t, s.Exists(ctx, "report.pdf"))
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		assert.ErrorIs(t, s.Add(ctx, nil), domain.ErrEmptyBatch)
	})

	t.Run("EmbeddingFailureCommitsNothing", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		err := s.Add(ctx, Chunks("/uploads/broken.pdf", "fine", "also "+FailMarker, "fine too"))
		require.ErrorIs(t, err, domain.ErrEmbedding)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.False(t, s.Exists(ctx, "broken.pdf"))
	})

	t.Run("RetrieveOrdersBySimilarity", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		require.NoError(t, s.Add(ctx, Chunks("/docs/a.pdf", "zzzz", "abc abc", "xyz")))

		results, err := s.Retrieve(ctx, "abc", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "abc abc", results[0].Chunk.Text)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
		assert.Equal(t, "a.pdf", results[0].Chunk.Source.Filename)
		assert.Equal(t, 2, results[0].Chunk.PageNumber)
		assert.Equal(t, 3, results[0].Chunk.TotalChunks)
	})

	t.Run("RetrieveKBounds", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		require.NoError(t, s.Add(ctx, Chunks("/docs/k.pdf", "one", "two", "three")))

		_, err := s.Retrieve(ctx, "one", 0)
		assert.ErrorIs(t, err, vectorstore.ErrInvalidK)

		results, err := s.Retrieve(ctx, "one", 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)

		results, err = s.Retrieve(ctx, "one", 50)
		require.NoError(t, err)
		require.Len(t, results, 3)
		seen := map[string]bool{}
		for _, r := range results {
			assert.False(t, seen[r.Chunk.Text], "duplicate %q", r.Chunk.Text)
			seen[r.Chunk.Text] = true
		}
	})

	t.Run("RetrieveTiesKeepInsertionOrder", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		require.NoError(t, s.Add(ctx, Chunks("/docs/t.pdf", "ab", "ba", "a b")))

		results, err := s.Retrieve(ctx, "ab", 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []string{"ab", "ba", "a b"}, []string{
			results[0].Chunk.Text, results[1].Chunk.Text, results[2].Chunk.Text,
		})
	})

	t.Run("RetrieveEmptyCorpus", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		results, err := s.Retrieve(ctx, "anything", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("RetrieveQueryEmbeddingFailure", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		_, err := s.Retrieve(ctx, FailMarker, 5)
		assert.ErrorIs(t, err, domain.ErrEmbedding)
	})

	t.Run("ResetIsIdempotent", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		require.NoError(t, s.Add(ctx, Chunks("/docs/r.pdf", "gone")))
		require.NoError(t, s.Reset(ctx))
		require.NoError(t, s.Reset(ctx))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.False(t, s.Exists(ctx, "r.pdf"))

		require.NoError(t, s.Add(ctx, Chunks("/docs/r.pdf", "back")))
		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("ConcurrentAdds", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Add(ctx, Chunks("/docs/c.pdf", "one", "two")))
			}()
		}
		wg.Wait()

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 16, n)
	})

	t.Run("ConcurrentAddAndRetrieve", func(t *testing.T) {
		s := newStore(t, &LetterEmbedder{})
		const writers, readers, k = 6, 4, 3
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				path := fmt.Sprintf("/docs/w%d.pdf", i)
				assert.NoError(t, s.Add(ctx, Chunks(path, "alpha beta", "gamma delta")))
			}(i)
		}
		for i := 0; i < readers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 5; j++ {
					got, err := s.Retrieve(ctx, "alpha gamma", k)
					if !assert.NoError(t, err) {
						return
					}
					assert.LessOrEqual(t, len(got), k)
				}
			}()
		}
		wg.Wait()

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, writers*2, n)

		all, err := s.Retrieve(ctx, "alpha gamma", writers*2+5)
		require.NoError(t, err)
		require.Len(t, all, writers*2)
		perPath := map[string]int{}
		for _, r := range all {
			perPath[r.Chunk.Source.Path]++
		}
		assert.Len(t, perPath, writers)
		for path, c := range perPath {
			assert.Equal(t, 2, c, path)
		}
	})
}
