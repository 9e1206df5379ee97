package domain

import "errors"

// Errors returned across component boundaries. Callers wrap them with
// context using fmt.Errorf("...: %w", err) and match with errors.Is.
var (
	// ErrInvalidInput indicates malformed or invalid arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngestion indicates a file could not be turned into pages.
	// Ingestion of that file is aborted.
	ErrIngestion = errors.New("ingestion failed")

	// ErrChunking indicates the pages produced no chunks.
	ErrChunking = errors.New("chunking failed")

	// ErrEmbedding indicates the embedding provider failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmptyBatch indicates an attempt to index zero chunks.
	ErrEmptyBatch = errors.New("no document chunks to index")

	// ErrModelInvocation indicates the language model call failed.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrSearch indicates the external search provider failed.
	ErrSearch = errors.New("external search failed")

	// ErrSearchUnavailable indicates no external search provider is configured.
	ErrSearchUnavailable = errors.New("external search unavailable")
)
