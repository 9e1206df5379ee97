package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docuchat/internal/config"
	"docuchat/internal/domain"
	"docuchat/internal/embedding"
	"docuchat/internal/service"
	"docuchat/internal/vectorstore/memory"
	"docuchat/internal/vectorstore/sqlite"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestBuildOfflineDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TAVILY_API_KEY", "")
	cfg := testConfig(t)

	c, err := build(context.Background(), cfg, false, zap.NewNop())
	require.NoError(t, err)
	defer c.store.Close()

	assert.IsType(t, &memory.Store{}, c.store)
	assert.Equal(t, "hash", c.embedder.Name())
	assert.False(t, c.pipeline.SearchAvailable())

	// No key: the first generation fails instead of the build.
	res := c.pipeline.Answer(context.Background(), "anything", service.Options{})
	assert.Equal(t, service.StateFailed, res.State)
	assert.ErrorIs(t, missingErr(t, cfg), domain.ErrInvalidInput)
}

func missingErr(t *testing.T, cfg *config.AppConfig) error {
	t.Helper()
	_, err := build(context.Background(), cfg, true, zap.NewNop())
	require.Error(t, err)
	return err
}

func TestBuildSQLiteWithCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorStore.Type = "sqlite"
	cfg.VectorStore.PersistDir = t.TempDir()
	cfg.Embedder.CacheSize = 16
	cfg.Embedder.CacheTTLSecs = 60

	c, err := build(context.Background(), cfg, false, zap.NewNop())
	require.NoError(t, err)
	defer c.store.Close()

	assert.IsType(t, &sqlite.Store{}, c.store)
	assert.IsType(t, &embedding.Cached{}, c.embedder)
	assert.Contains(t, storeLocation(cfg.VectorStore), sqlite.DBFile)
}

func TestBuildSearcherNeedsKey(t *testing.T) {
	cfg := testConfig(t)

	t.Setenv("TAVILY_API_KEY", "")
	assert.Nil(t, buildSearcher(cfg.Escalation, zap.NewNop()))

	t.Setenv("TAVILY_API_KEY", "tvly-test")
	assert.NotNil(t, buildSearcher(cfg.Escalation, zap.NewNop()))
}

func TestBuildRejectsUnknownTypes(t *testing.T) {
	_, err := buildEmbedder(context.Background(), config.EmbedderConfig{Type: "word2vec"}, zap.NewNop())
	assert.Error(t, err)
	_, err = buildGenerator(context.Background(), config.LLMConfig{Type: "llama"})
	assert.Error(t, err)
	_, err = buildStore(config.VectorStoreConfig{Type: "chroma"}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, service.Result{
		Text:      "Refunds take 14 days.",
		Warnings:  []string{"external search failed: timeout"},
		Citations: []domain.SourceCitation{{Filename: "policy.pdf", PageRange: "Pages 1-2", ChunkCount: 3}},
	})
	out := buf.String()
	assert.Contains(t, out, "Refunds take 14 days.\n")
	assert.Contains(t, out, "Warning: external search failed: timeout")
	assert.Contains(t, out, "policy.pdf (Pages 1-2, 3 chunks)")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, service.IngestReport{Filename: "a.pdf", Skipped: true})
	printReport(&buf, service.IngestReport{Filename: "b.pdf", Pages: 3, Chunks: 7, Digest: "Short."})
	assert.Equal(t, "a.pdf is already indexed, skipped\nIndexed b.pdf: 3 pages, 7 chunks\n  Short.\n", buf.String())
}

func TestStatusCommand(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(cfgPath, testConfig(t)))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "--log-level", "error", "status"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "store:      memory (in-process)")
	assert.Contains(t, out.String(), "chunks:     0")
	assert.Contains(t, out.String(), "web search: enabled, no API key")
}
