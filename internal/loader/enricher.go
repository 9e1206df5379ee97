// Package loader turns uploaded PDF files into pages carrying provenance.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"docuchat/internal/domain"
	"docuchat/internal/logging"
)

// PageSource extracts raw page texts from a file, one entry per physical page.
type PageSource interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// Enricher attaches file-level provenance to every page of a document.
type Enricher struct {
	source PageSource
	now    func() time.Time
	log    *zap.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithClock overrides the upload timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnricher creates an enricher reading pages from source.
func NewEnricher(source PageSource, log *zap.Logger, opts ...Option) *Enricher {
	e := &Enricher{source: source, now: time.Now, log: logging.OrNop(log)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ domain.PageLoader = (*Enricher)(nil)

// Load returns one Page per physical page of the file at path. A file that
// yields no pages fails with domain.ErrIngestion.
func (e *Enricher) Load(ctx context.Context, path string) ([]domain.Page, error) {
	e.log.Info("loading document", zap.String("path", path))

	texts, err := e.source.Pages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrIngestion, path, err)
	}
	if len(texts) == 0 {
		e.log.Error("document has no pages", zap.String("path", path))
		return nil, fmt.Errorf("%w: failed to load any content from PDF: %s", domain.ErrIngestion, path)
	}

	doc := e.describe(path)
	pages := make([]domain.Page, len(texts))
	for i, text := range texts {
		pages[i] = domain.Page{Text: text, PageNumber: i + 1, Source: doc}
	}

	e.log.Info("document loaded",
		zap.String("file", doc.Filename),
		zap.Int("pages", len(pages)),
		zap.Int64("size_bytes", doc.SizeBytes),
	)
	return pages, nil
}

// describe builds the file-level provenance. When the file cannot be
// stat'ed the size is left at zero.
func (e *Enricher) describe(path string) domain.SourceDocument {
	doc := domain.SourceDocument{
		Path:       path,
		Filename:   filepath.Base(path),
		UploadedAt: e.now().UTC(),
		FileType:   domain.FileTypePDF,
	}
	info, err := os.Stat(path)
	if err != nil {
		e.log.Debug("stat failed, size unknown", zap.String("path", path), zap.Error(err))
		return doc
	}
	doc.SizeBytes = info.Size()
	return doc
}
