package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
)

func newGenerator(t *testing.T, h http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_OPENAI_KEY", "sk-chat")
	g, err := New(Config{BaseURL: srv.URL + "/", APIKeyEnv: "TEST_OPENAI_KEY", Model: "gpt-test"})
	require.NoError(t, err)
	return g
}

func TestGenerate(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-chat", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 1024, req.MaxTokens)
		assert.Zero(t, req.Temperature)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "what is rag?", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  retrieval augmented generation \n"}}]}`))
	})

	out, err := g.Generate(context.Background(), "what is rag?")
	require.NoError(t, err)
	assert.Equal(t, "retrieval augmented generation", out)
}

func TestGenerate_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newGenerator(t, h).Generate(context.Background(), "q")
			assert.ErrorIs(t, err, domain.ErrModelInvocation)
		})
	}
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("EMPTY_OPENAI_KEY", "")
	_, err := New(Config{APIKeyEnv: "EMPTY_OPENAI_KEY"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
