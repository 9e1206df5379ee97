package domain

import (
	"context"
	"time"
)

// FileTypePDF is the only file type accepted for ingestion.
const FileTypePDF = "PDF"

// SourceDocument identifies one uploaded file in the corpus.
type SourceDocument struct {
	Path       string
	Filename   string
	SizeBytes  int64
	UploadedAt time.Time
	FileType   string
}

// Page is one physical page of a SourceDocument. Source is a copy so that
// pages and the chunks derived from them stay self-describing.
type Page struct {
	Text       string
	PageNumber int
	Source     SourceDocument
}

// Chunk is a bounded text segment derived from one page, the unit of
// embedding and retrieval. StartOffset is the byte offset of Text inside
// the page text.
type Chunk struct {
	Text        string
	StartOffset int
	ChunkIndex  int
	TotalChunks int
	PageNumber  int
	Source      SourceDocument
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// SourceRecord is the per-chunk provenance captured while formatting the
// retrieval context. Number is the 1-based position in the context.
type SourceRecord struct {
	Number  int
	Content string
	Chunk   Chunk
}

// SourceCitation is the per-file aggregation shown next to an answer.
type SourceCitation struct {
	Filename   string
	Pages      []int
	ChunkCount int
	PageRange  string
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher looks a query up on the web and returns a free-text digest.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Chunker splits enriched pages into overlapping chunks.
type Chunker interface {
	Chunk(ctx context.Context, pages []Page) ([]Chunk, error)
}

// PageLoader turns a file path into enriched pages.
type PageLoader interface {
	Load(ctx context.Context, path string) ([]Page, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
