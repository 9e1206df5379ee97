package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
	"docuchat/internal/vectorstore"
	"docuchat/internal/vectorstore/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, e domain.Embedder) vectorstore.Store {
		return New(e, 2, nil)
	})
}

func TestStore_EmbedsEveryChunkOnce(t *testing.T) {
	e := &storetest.LetterEmbedder{}
	s := New(e, 3, nil)
	require.NoError(t, s.Add(context.Background(), storetest.Chunks("/d/x.pdf", "a", "b", "c", "d", "e")))
	assert.Equal(t, 5, e.Calls())
}
