// Package chunker splits enriched pages into overlapping text chunks.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"docuchat/internal/domain"
	"docuchat/internal/logging"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ErrInvalidChunkConfig is returned for a non-positive size, a negative
// overlap, or an overlap that is not smaller than the size.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// DefaultSeparators are tried in order: paragraphs, lines, sentences,
// clauses, words, and finally raw characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", ", ", " ", ""}

// Recursive splits text on the highest-priority separator that keeps pieces
// under the size limit and merges the pieces back into overlapping chunks.
// Separators stay attached to the piece they end, so every chunk is an
// exact substring of its page.
type Recursive struct {
	size       int
	overlap    int
	separators []string
	log        *zap.Logger
}

// NewRecursive creates a chunker measuring size and overlap in characters.
func NewRecursive(size, overlap int, log *zap.Logger) (*Recursive, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunkConfig, size, overlap)
	}
	return &Recursive{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
		log:        logging.OrNop(log),
	}, nil
}

var _ domain.Chunker = (*Recursive)(nil)

// span is a byte range inside a page text.
type span struct{ start, end int }

// Chunk splits every page and then numbers the resulting chunks. Pages
// consisting only of whitespace produce no chunks.
func (c *Recursive) Chunk(ctx context.Context, pages []domain.Page) ([]domain.Chunk, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no documents to chunk, the document may be empty", domain.ErrChunking)
	}
	c.log.Info("chunking pages",
		zap.Int("pages", len(pages)),
		zap.Int("size", c.size),
		zap.Int("overlap", c.overlap),
	)

	var chunks []domain.Chunk
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(page.Text) == "" {
			c.log.Debug("skipping blank page", zap.Int("page", page.PageNumber))
			continue
		}
		for _, sp := range c.merge(page.Text, c.split(page.Text, 0, c.separators)) {
			chunks = append(chunks, domain.Chunk{
				Text:        page.Text[sp.start:sp.end],
				StartOffset: sp.start,
				PageNumber:  page.PageNumber,
				Source:      page.Source,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: chunking produced no results, the document may contain no text", domain.ErrChunking)
	}

	// The total is only known once every page is split.
	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].TotalChunks = len(chunks)
	}
	c.log.Info("chunking completed", zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// split cuts text into pieces no longer than c.size. base is the offset of
// text inside the page.
func (c *Recursive) split(text string, base int, seps []string) []span {
	if runeLen(text) <= c.size {
		return []span{{base, base + len(text)}}
	}
	if len(seps) == 0 || seps[0] == "" {
		return c.cut(text, base)
	}
	sep := seps[0]
	if !strings.Contains(text, sep) {
		return c.split(text, base, seps[1:])
	}

	var out []span
	off := base
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if runeLen(part) <= c.size {
			out = append(out, span{off, off + len(part)})
		} else {
			out = append(out, c.split(part, off, seps[1:])...)
		}
		off += len(part)
	}
	return out
}

// cut falls back to single characters, leaving the merge step free to
// overlap at character granularity.
func (c *Recursive) cut(text string, base int) []span {
	out := make([]span, 0, runeLen(text))
	prev := -1
	for i := range text {
		if prev >= 0 {
			out = append(out, span{base + prev, base + i})
		}
		prev = i
	}
	if prev >= 0 {
		out = append(out, span{base + prev, base + len(text)})
	}
	return out
}

// merge packs adjacent pieces into chunks of at most c.size characters.
// Each new chunk restarts on trailing pieces of the previous one totalling
// at most c.overlap characters.
func (c *Recursive) merge(text string, pieces []span) []span {
	lengths := make([]int, len(pieces))
	for i, p := range pieces {
		lengths[i] = runeLen(text[p.start:p.end])
	}

	var chunks []span
	i := 0
	for i < len(pieces) {
		j, total := i, 0
		for j < len(pieces) && (j == i || total+lengths[j] <= c.size) {
			total += lengths[j]
			j++
		}
		chunks = append(chunks, span{pieces[i].start, pieces[j-1].end})
		if j == len(pieces) {
			break
		}

		k, back := j, 0
		for k-1 > i {
			l := lengths[k-1]
			if back+l > c.overlap || back+l+lengths[j] > c.size {
				break
			}
			back += l
			k--
		}
		i = k
	}
	return chunks
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
