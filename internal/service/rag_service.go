// Package service runs retrieval-augmented answering over the indexed
// document corpus, escalating to web search when the documents fall short.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docuchat/internal/citation"
	"docuchat/internal/domain"
	"docuchat/internal/logging"
	"docuchat/internal/vectorstore"
	"docuchat/internal/websearch"
)

const (
	DefaultK             = 5
	DefaultSearchTimeout = 20 * time.Second
)

// State is a step of the answering state machine.
type State int

const (
	StateRetrieve State = iota
	StateFormatContext
	StateFirstPass
	StateDecide
	StateEscalate
	StateFinalize
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRetrieve:
		return "retrieve"
	case StateFormatContext:
		return "format_context"
	case StateFirstPass:
		return "first_pass"
	case StateDecide:
		return "decide"
	case StateEscalate:
		return "escalate"
	case StateFinalize:
		return "finalize"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options controls a single Answer call.
type Options struct {
	// Escalation lets the model request an external search.
	Escalation bool
}

// Result is what the caller shows for one query. Failures are reported in
// Text with State set to StateFailed.
type Result struct {
	Text      string
	Sources   []domain.SourceRecord
	Citations []domain.SourceCitation
	Warnings  []string
	Escalated bool
	State     State
}

// Deps are the collaborators of a Pipeline. Searcher may be nil when no
// external search is configured; Summarizer may be nil to skip digests.
type Deps struct {
	Store      vectorstore.Store
	Generator  domain.Generator
	Searcher   domain.Searcher
	Loader     domain.PageLoader
	Chunker    domain.Chunker
	Summarizer domain.Summarizer
}

// Config tunes a Pipeline. Zero values select the defaults.
type Config struct {
	K               int
	SearchTimeout   time.Duration
	DigestSentences int
}

// Pipeline answers questions against a Store and ingests new documents
// into it.
type Pipeline struct {
	deps Deps
	cfg  Config
	log  *zap.Logger
}

func New(deps Deps, cfg Config, log *zap.Logger) *Pipeline {
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	return &Pipeline{deps: deps, cfg: cfg, log: logging.OrNop(log).Named("pipeline")}
}

// SearchAvailable reports whether escalation can reach an external search.
func (p *Pipeline) SearchAvailable() bool { return websearch.Available(p.deps.Searcher) }

// Answer runs the pipeline for query. It never returns an error; retrieval
// and first-pass failures end in StateFailed, escalation failures become
// warnings on a document-only answer.
func (p *Pipeline) Answer(ctx context.Context, query string, opts Options) Result {
	log := p.log.With(zap.Bool("escalation", opts.Escalation))
	log.Info("answering query", zap.String("query", preview(query)))

	var res Result
	fail := func(err error) Result {
		log.Error("answer failed", zap.Stringer("state", res.State), zap.Error(err))
		res.Text = "Error generating response: " + err.Error()
		res.Citations = citation.Aggregate(res.Sources)
		res.State = StateFailed
		return res
	}

	if strings.TrimSpace(query) == "" {
		return fail(fmt.Errorf("%w: empty query", domain.ErrInvalidInput))
	}

	res.State = StateRetrieve
	hits, err := p.deps.Store.Retrieve(ctx, query, p.cfg.K)
	if err != nil {
		return fail(fmt.Errorf("retrieving context: %w", err))
	}
	log.Debug("retrieved chunks", zap.Int("count", len(hits)))

	res.State = StateFormatContext
	docContext, sources := formatContext(hits)
	res.Sources = sources

	res.State = StateFirstPass
	first, err := p.deps.Generator.Generate(ctx, firstPassPrompt(opts.Escalation, docContext, query))
	if err != nil {
		return fail(err)
	}

	res.State = StateDecide
	if !opts.Escalation || !hasSentinel(first) {
		return p.finish(res, first)
	}
	if !p.SearchAvailable() {
		log.Info("external search requested but unavailable")
		return p.finish(res, first)
	}

	res.State = StateEscalate
	enhanced, err := p.escalate(ctx, query, docContext)
	if err != nil {
		log.Warn("escalation failed, using document answer", zap.Error(err))
		res.Warnings = append(res.Warnings, searchWarning(err))
		return p.finish(res, first)
	}
	res.Escalated = true
	return p.finish(res, enhanced)
}

// escalate searches the web under the configured timeout and asks the model
// again with both contexts.
func (p *Pipeline) escalate(ctx context.Context, query, docContext string) (string, error) {
	p.log.Info("document context insufficient, searching external sources")

	sctx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	external, err := p.deps.Searcher.Search(sctx, query)
	timedOut := errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if timedOut {
		return "", fmt.Errorf("%w: timed out after %s", domain.ErrSearch, p.cfg.SearchTimeout)
	}
	if err != nil {
		return "", err
	}

	answer, err := p.deps.Generator.Generate(ctx, combinedPrompt(docContext, external, query))
	if err != nil {
		return "", fmt.Errorf("generating combined answer: %w", err)
	}
	return answer, nil
}

// searchWarning renders an escalation failure for the user. Errors already
// wrapping domain.ErrSearch carry the prefix themselves.
func searchWarning(err error) string {
	if errors.Is(err, domain.ErrSearch) {
		return err.Error()
	}
	return domain.ErrSearch.Error() + ": " + err.Error()
}

func (p *Pipeline) finish(res Result, answer string) Result {
	res.State = StateFinalize
	res.Text = finalize(answer)
	res.Citations = citation.Aggregate(res.Sources)
	p.log.Info("answer ready",
		zap.Int("sources", len(res.Sources)),
		zap.Bool("escalated", res.Escalated),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res
}

// formatContext renders retrieved chunks as numbered source blocks and
// records their provenance.
func formatContext(hits []domain.SearchResult) (string, []domain.SourceRecord) {
	blocks := make([]string, 0, len(hits))
	sources := make([]domain.SourceRecord, 0, len(hits))
	for i, h := range hits {
		n := i + 1
		sources = append(sources, domain.SourceRecord{Number: n, Content: h.Chunk.Text, Chunk: h.Chunk})

		header := fmt.Sprintf("--- Source %d ---", n)
		var meta []string
		if h.Chunk.Source.Filename != "" {
			meta = append(meta, "File: "+h.Chunk.Source.Filename)
		}
		if h.Chunk.PageNumber > 0 {
			meta = append(meta, fmt.Sprintf("Page: %d", h.Chunk.PageNumber))
		}
		meta = append(meta, fmt.Sprintf("Chunk: %d/%d", h.Chunk.ChunkIndex+1, h.Chunk.TotalChunks))
		header += "\n[" + strings.Join(meta, " | ") + "]"

		blocks = append(blocks, header+"\n\n"+h.Chunk.Text)
	}
	return strings.Join(blocks, "\n\n"), sources
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
