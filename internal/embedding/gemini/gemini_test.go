package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
)

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_TEST_KEY", "  ")
	_, err := New(context.Background(), Config{APIKeyEnv: "GEMINI_TEST_KEY"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbed_WrapsFailures(t *testing.T) {
	e := &Embedder{model: "m", embed: func(context.Context, string) ([]float32, error) {
		return nil, errors.New("quota exceeded")
	}}
	_, err := e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestEmbed_RejectsEmptyVector(t *testing.T) {
	e := &Embedder{model: "m", embed: func(context.Context, string) ([]float32, error) {
		return nil, nil
	}}
	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestEmbed_ReturnsValues(t *testing.T) {
	e := &Embedder{model: "m", embed: func(_ context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text))}, nil
	}}
	v, err := e.Embed(context.Background(), "four")
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, v)
	assert.Equal(t, "gemini:m", e.Name())
}
