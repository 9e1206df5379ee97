package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"docuchat/internal/logging"
)

// StorageConfig controls where uploaded files are kept.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

// ChunkerConfig configures how pages are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
	AllowNoKey  bool   `yaml:"allow_no_key"`
}

// GeminiEmbedderConfig holds configuration for the Gemini embedder.
type GeminiEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	TaskType  string `yaml:"task_type"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type         string                `yaml:"type"`
	Dimension    int                   `yaml:"dimension"`
	CacheSize    int                   `yaml:"cache_size"`
	CacheTTLSecs int                   `yaml:"cache_ttl_secs"`
	OpenAI       *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Gemini       *GeminiEmbedderConfig `yaml:"gemini,omitempty"`
}

// LLMConfig selects the generation backend. APIKeyEnv defaults per type.
type LLMConfig struct {
	Type        string  `yaml:"type"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	AllowNoKey  bool    `yaml:"allow_no_key"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type             string        `yaml:"type"`
	PersistDir       string        `yaml:"persist_dir"`
	Collection       string        `yaml:"collection"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`
	Qdrant           *QdrantConfig `yaml:"qdrant,omitempty"`
}

type RetrievalConfig struct {
	K int `yaml:"k"`
}

// TavilyConfig configures the web search used for escalation.
type TavilyConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	MaxResults  int    `yaml:"max_results"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EscalationConfig controls whether answers may fall back to web search.
type EscalationConfig struct {
	Enabled           bool         `yaml:"enabled"`
	SearchTimeoutSecs int          `yaml:"search_timeout_secs"`
	Tavily            TavilyConfig `yaml:"tavily"`
}

// SummarizerConfig sizes the ingest digest.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         logging.Config    `yaml:"log"`
	Storage     StorageConfig     `yaml:"storage"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	LLM         LLMConfig         `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Escalation  EscalationConfig  `yaml:"escalation"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := baseConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docuchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/docuchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docuchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := baseConfig()
	applyConfigDefaults(cfg)
	return cfg
}

// baseConfig holds the values that do not depend on a provider type.
func baseConfig() *AppConfig {
	return &AppConfig{
		Log:         logging.Config{Level: "info", Format: "console"},
		Storage:     StorageConfig{UploadDir: "uploads"},
		Chunker:     ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Embedder:    EmbedderConfig{Type: "hash"},
		LLM:         LLMConfig{Type: "openai"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Retrieval:   RetrievalConfig{K: 5},
		Escalation:  EscalationConfig{Enabled: true},
		Summarizer:  SummarizerConfig{MaxSentences: 3},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "uploads"
	}
	if cfg.VectorStore.PersistDir == "" {
		cfg.VectorStore.PersistDir = "chroma_db_docs"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "document_chunks"
	}
	if cfg.VectorStore.EmbedConcurrency == 0 {
		cfg.VectorStore.EmbedConcurrency = 4
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 10
		}
	}

	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-large"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	case "gemini":
		if cfg.Embedder.Gemini == nil {
			cfg.Embedder.Gemini = &GeminiEmbedderConfig{}
		}
		if cfg.Embedder.Gemini.APIKeyEnv == "" {
			cfg.Embedder.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
	}

	if cfg.LLM.APIKeyEnv == "" {
		switch cfg.LLM.Type {
		case "openai":
			cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
		case "anthropic":
			cfg.LLM.APIKeyEnv = "ANTHROPIC_API_KEY"
		case "gemini":
			cfg.LLM.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Type {
		case "openai":
			cfg.LLM.Model = "gpt-4.1-mini"
		case "anthropic":
			cfg.LLM.Model = "claude-haiku-4-5-20251001"
		}
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}

	if cfg.Escalation.SearchTimeoutSecs == 0 {
		cfg.Escalation.SearchTimeoutSecs = 20
	}
	if cfg.Escalation.Tavily.APIKeyEnv == "" {
		cfg.Escalation.Tavily.APIKeyEnv = "TAVILY_API_KEY"
	}
	if cfg.Escalation.Tavily.MaxResults == 0 {
		cfg.Escalation.Tavily.MaxResults = 2
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chunker.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunker.chunk_size must be positive, got %d", c.Chunker.ChunkSize))
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.chunk_overlap must be in [0, chunk_size), got %d", c.Chunker.ChunkOverlap))
	}
	if c.Retrieval.K <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K))
	}
	if !oneOf(c.Embedder.Type, "hash", "openai", "gemini") {
		errs = append(errs, fmt.Errorf("unknown embedder type %q", c.Embedder.Type))
	}
	if !oneOf(c.LLM.Type, "openai", "anthropic", "gemini") {
		errs = append(errs, fmt.Errorf("unknown llm type %q", c.LLM.Type))
	}
	if !oneOf(c.VectorStore.Type, "memory", "sqlite", "qdrant") {
		errs = append(errs, fmt.Errorf("unknown vector store type %q", c.VectorStore.Type))
	}
	return errors.Join(errs...)
}

// SearchTimeout returns the escalation search budget.
func (c *AppConfig) SearchTimeout() time.Duration {
	return time.Duration(c.Escalation.SearchTimeoutSecs) * time.Second
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
