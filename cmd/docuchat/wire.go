package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"docuchat/internal/chunker"
	"docuchat/internal/config"
	"docuchat/internal/domain"
	"docuchat/internal/embedding"
	embgemini "docuchat/internal/embedding/gemini"
	"docuchat/internal/embedding/hash"
	embopenai "docuchat/internal/embedding/openai"
	"docuchat/internal/llm/anthropic"
	llmgemini "docuchat/internal/llm/gemini"
	llmopenai "docuchat/internal/llm/openai"
	"docuchat/internal/loader"
	"docuchat/internal/service"
	"docuchat/internal/summarizer"
	"docuchat/internal/vectorstore"
	"docuchat/internal/vectorstore/memory"
	"docuchat/internal/vectorstore/qdrant"
	"docuchat/internal/vectorstore/sqlite"
	"docuchat/internal/websearch/tavily"
)

// components is the assembled application graph for one command.
type components struct {
	embedder domain.Embedder
	store    vectorstore.Store
	pipeline *service.Pipeline
}

// build wires every component from cfg. When needLLM is false a missing
// generator only fails the first Generate call.
func build(ctx context.Context, cfg *config.AppConfig, needLLM bool, log *zap.Logger) (*components, error) {
	emb, err := buildEmbedder(ctx, cfg.Embedder, log)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	st, err := buildStore(cfg.VectorStore, emb, log)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	gen, err := buildGenerator(ctx, cfg.LLM)
	if err != nil {
		if needLLM {
			st.Close()
			return nil, fmt.Errorf("llm: %w", err)
		}
		log.Debug("llm not configured", zap.Error(err))
		gen = missingGenerator{err: err}
	}
	ch, err := chunker.NewRecursive(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	p := service.New(service.Deps{
		Store:      st,
		Generator:  gen,
		Searcher:   buildSearcher(cfg.Escalation, log),
		Loader:     loader.NewEnricher(loader.PDFSource{}, log),
		Chunker:    ch,
		Summarizer: summarizer.New(),
	}, service.Config{
		K:               cfg.Retrieval.K,
		SearchTimeout:   cfg.SearchTimeout(),
		DigestSentences: cfg.Summarizer.MaxSentences,
	}, log)

	return &components{embedder: emb, store: st, pipeline: p}, nil
}

func buildEmbedder(ctx context.Context, cfg config.EmbedderConfig, log *zap.Logger) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "hash", "":
		emb = hash.NewEmbedder(cfg.Dimension)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			AllowNoKey: cfg.OpenAI.AllowNoKey,
			MaxRetries: cfg.OpenAI.MaxRetries,
		}, log)
		if err != nil {
			return nil, err
		}
		emb = client
	case "gemini":
		if cfg.Gemini == nil {
			return nil, errors.New("gemini embedder config missing")
		}
		g, err := embgemini.New(ctx, embgemini.Config{
			APIKeyEnv: cfg.Gemini.APIKeyEnv,
			Model:     cfg.Gemini.Model,
			TaskType:  cfg.Gemini.TaskType,
		})
		if err != nil {
			return nil, err
		}
		emb = g
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	return embedding.WithCache(emb, cfg.CacheSize, time.Duration(cfg.CacheTTLSecs)*time.Second, log), nil
}

func buildGenerator(ctx context.Context, cfg config.LLMConfig) (domain.Generator, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Type {
	case "openai", "":
		return llmopenai.New(llmopenai.Config{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
			AllowNoKey:  cfg.AllowNoKey,
		})
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKeyEnv:   cfg.APIKeyEnv,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		})
	case "gemini":
		return llmgemini.New(ctx, llmgemini.Config{
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   int32(cfg.MaxTokens),
		})
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
}

func buildStore(cfg config.VectorStoreConfig, emb domain.Embedder, log *zap.Logger) (vectorstore.Store, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.New(emb, cfg.EmbedConcurrency, log), nil
	case "sqlite":
		return sqlite.NewStore(sqlite.Config{
			Dir:              cfg.PersistDir,
			Collection:       cfg.Collection,
			EmbedConcurrency: cfg.EmbedConcurrency,
		}, emb, log)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewStore(qdrant.Config{
			URL:              cfg.Qdrant.URL,
			APIKey:           cfg.Qdrant.APIKey,
			Collection:       cfg.Collection,
			Timeout:          time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
			EmbedConcurrency: cfg.EmbedConcurrency,
		}, emb, log)
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// buildSearcher returns nil when no search key is configured, so the
// pipeline sees search as unavailable.
func buildSearcher(cfg config.EscalationConfig, log *zap.Logger) domain.Searcher {
	client, err := tavily.New(tavily.Config{
		APIKeyEnv:  cfg.Tavily.APIKeyEnv,
		BaseURL:    cfg.Tavily.BaseURL,
		MaxResults: cfg.Tavily.MaxResults,
		Timeout:    time.Duration(cfg.Tavily.TimeoutSecs) * time.Second,
	}, log)
	if err != nil {
		log.Info("external search disabled", zap.Error(err))
		return nil
	}
	return client
}

type missingGenerator struct{ err error }

func (g missingGenerator) Generate(context.Context, string) (string, error) { return "", g.err }

func storeLocation(cfg config.VectorStoreConfig) string {
	switch cfg.Type {
	case "sqlite":
		return filepath.Join(cfg.PersistDir, sqlite.DBFile) + "#" + cfg.Collection
	case "qdrant":
		if cfg.Qdrant != nil {
			return cfg.Qdrant.URL + "/collections/" + cfg.Collection
		}
	}
	return "in-process"
}
