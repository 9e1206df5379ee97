package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/vectorstore"
)

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbed_NormalizedAndDeterministic(t *testing.T) {
	e := NewEmbedder(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, "The refund policy allows returns within thirty days.")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "The refund policy allows returns within thirty days.")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestEmbed_RelatedTextScoresHigher(t *testing.T) {
	e := NewEmbedder(DefaultDimension)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "refund policy returns")
	related, _ := e.Embed(ctx, "Our refund policy covers returns of unopened goods.")
	unrelated, _ := e.Embed(ctx, "Quarterly revenue grew in the northern region.")

	assert.Greater(t, vectorstore.Cosine(query, related), vectorstore.Cosine(query, unrelated))
}

func TestEmbed_StopwordsOnlyGivesZeroVector(t *testing.T) {
	e := NewEmbedder(16)
	v, err := e.Embed(context.Background(), "the and of to")
	require.NoError(t, err)
	assert.Zero(t, norm(v))
}

func TestNewEmbedder_DefaultDimension(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, "hash", e.Name())
}
