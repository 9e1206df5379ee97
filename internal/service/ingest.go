package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"docuchat/internal/domain"
)

// IngestReport describes the outcome of ingesting one file.
type IngestReport struct {
	Path     string
	Filename string
	// Skipped is set when a file with the same name is already indexed.
	Skipped bool
	Pages   int
	Chunks  int
	Digest  string
}

// Ingest loads, chunks and indexes the PDF at path. A file whose name is
// already present in the store is skipped without touching the store.
func (p *Pipeline) Ingest(ctx context.Context, path string) (IngestReport, error) {
	report := IngestReport{Path: path, Filename: filepath.Base(path)}
	log := p.log.With(zap.String("file", report.Filename))

	if p.deps.Store.Exists(ctx, report.Filename) {
		log.Info("document already indexed, skipping")
		report.Skipped = true
		return report, nil
	}

	pages, err := p.deps.Loader.Load(ctx, path)
	if err != nil {
		return report, err
	}
	report.Pages = len(pages)

	chunks, err := p.deps.Chunker.Chunk(ctx, pages)
	if err != nil {
		return report, err
	}
	if err := p.deps.Store.Add(ctx, chunks); err != nil {
		return report, fmt.Errorf("indexing %s: %w", report.Filename, err)
	}
	report.Chunks = len(chunks)
	report.Digest = p.digest(pages, log)

	log.Info("document ingested", zap.Int("pages", report.Pages), zap.Int("chunks", report.Chunks))
	return report, nil
}

// digest is best effort; a summarizer failure only costs the digest.
func (p *Pipeline) digest(pages []domain.Page, log *zap.Logger) string {
	if p.deps.Summarizer == nil {
		return ""
	}
	texts := make([]string, len(pages))
	for i, pg := range pages {
		texts[i] = pg.Text
	}
	out, err := p.deps.Summarizer.Summarize(strings.Join(texts, "\n"), p.cfg.DigestSentences)
	if err != nil {
		log.Warn("digest failed", zap.Error(err))
		return ""
	}
	return out
}
