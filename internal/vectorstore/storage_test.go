package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
	"docuchat/internal/vectorstore"
	"docuchat/internal/vectorstore/storetest"
)

// failingEmbedder returns err for every text.
type failingEmbedder struct{ err error }

func (f failingEmbedder) Name() string { return "failing" }

func (f failingEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, f.err }

func TestEmbedErrorsWrapOnce(t *testing.T) {
	ctx := context.Background()
	chunks := storetest.Chunks("/docs/a.pdf", "alpha")

	t.Run("AlreadyTagged", func(t *testing.T) {
		e := failingEmbedder{err: fmt.Errorf("%w: openai: status 500", domain.ErrEmbedding)}

		_, err := vectorstore.EmbedAll(ctx, e, chunks, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbedding)
		assert.Equal(t, 1, strings.Count(err.Error(), domain.ErrEmbedding.Error()), err.Error())

		_, err = vectorstore.EmbedQuery(ctx, e, "q")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbedding)
		assert.Equal(t, "query: embedding failed: openai: status 500", err.Error())
	})

	t.Run("Untagged", func(t *testing.T) {
		e := failingEmbedder{err: context.Canceled}

		_, err := vectorstore.EmbedAll(ctx, e, chunks, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbedding)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "embedding failed: chunk 0 of a.pdf: context canceled", err.Error())

		_, err = vectorstore.EmbedQuery(ctx, e, "q")
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, strings.Count(err.Error(), domain.ErrEmbedding.Error()))
	})
}
