package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
)

func pagesOf(path string, texts ...string) []domain.Page {
	doc := domain.SourceDocument{Path: path, Filename: path, FileType: domain.FileTypePDF}
	pages := make([]domain.Page, len(texts))
	for i, t := range texts {
		pages[i] = domain.Page{Text: t, PageNumber: i + 1, Source: doc}
	}
	return pages
}

const prose = "Retrieval augmented generation combines search with synthesis.\n\n" +
	"The first stage finds passages that look relevant, ranking them by cosine similarity. " +
	"The second stage asks a model to answer, citing the passages it used.\n" +
	"When the corpus is thin, the model may request an external search, " +
	"and the pipeline folds those results into a second prompt.\n\n" +
	"Überprüfung: naïve café entries keep multi-byte runes intact, even near boundaries."

func TestNewRecursive_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRecursive(tc.size, tc.overlap, nil)
			assert.ErrorIs(t, err, ErrInvalidChunkConfig)
		})
	}
}

func TestChunk_RoundTrip(t *testing.T) {
	pages := pagesOf("guide.pdf", prose, "  \n\t ", strings.Repeat("word ", 120), "short tail")
	var want strings.Builder
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			want.WriteString(p.Text)
		}
	}

	configs := []struct{ size, overlap int }{
		{1000, 200},
		{120, 30},
		{50, 10},
		{17, 5},
		{8, 0},
		{3, 2},
	}
	for _, cfg := range configs {
		c, err := NewRecursive(cfg.size, cfg.overlap, nil)
		require.NoError(t, err)

		chunks, err := c.Chunk(context.Background(), pages)
		require.NoError(t, err)
		assert.Equal(t, want.String(), Reassemble(chunks), "size=%d overlap=%d", cfg.size, cfg.overlap)

		for _, ch := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), cfg.size)
			assert.True(t, utf8.ValidString(ch.Text), "chunk split a rune: %q", ch.Text)
		}
	}
}

func TestChunk_ReassembleIgnoresInputOrder(t *testing.T) {
	c, err := NewRecursive(40, 10, nil)
	require.NoError(t, err)
	chunks, err := c.Chunk(context.Background(), pagesOf("a.pdf", prose))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	reversed := make([]domain.Chunk, len(chunks))
	for i, ch := range chunks {
		reversed[len(chunks)-1-i] = ch
	}
	assert.Equal(t, prose, Reassemble(reversed))
}

func TestChunk_IndexAnnotation(t *testing.T) {
	c, err := NewRecursive(30, 5, nil)
	require.NoError(t, err)
	chunks, err := c.Chunk(context.Background(), pagesOf("doc.pdf", prose, prose))
	require.NoError(t, err)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, len(chunks), ch.TotalChunks)
		assert.Equal(t, "doc.pdf", ch.Source.Filename)
		assert.Contains(t, []int{1, 2}, ch.PageNumber)
	}
}

func TestChunk_ExactSubstringsWithOffsets(t *testing.T) {
	c, err := NewRecursive(25, 8, nil)
	require.NoError(t, err)
	chunks, err := c.Chunk(context.Background(), pagesOf("doc.pdf", prose))
	require.NoError(t, err)

	for _, ch := range chunks {
		assert.Equal(t, prose[ch.StartOffset:ch.StartOffset+len(ch.Text)], ch.Text)
	}
}

func TestChunk_PrefersParagraphBoundaries(t *testing.T) {
	c, err := NewRecursive(6, 0, nil)
	require.NoError(t, err)
	chunks, err := c.Chunk(context.Background(), pagesOf("p.pdf", "aaaa\n\nbbbb"))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaa\n\n", chunks[0].Text)
	assert.Equal(t, "bbbb", chunks[1].Text)
}

func TestChunk_CharacterFallbackOverlaps(t *testing.T) {
	c, err := NewRecursive(4, 2, nil)
	require.NoError(t, err)
	chunks, err := c.Chunk(context.Background(), pagesOf("raw.pdf", "abcdefghij"))
	require.NoError(t, err)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	assert.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, texts)
}

func TestChunk_ShortPageIsSingleChunk(t *testing.T) {
	c, err := NewRecursive(DefaultChunkSize, DefaultChunkOverlap, nil)
	require.NoError(t, err)
	chunks, err := c.Chunk(context.Background(), pagesOf("s.pdf", "A single line."))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A single line.", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].TotalChunks)
}

func TestChunk_EmptyInput(t *testing.T) {
	c, err := NewRecursive(DefaultChunkSize, DefaultChunkOverlap, nil)
	require.NoError(t, err)

	_, err = c.Chunk(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrChunking)

	_, err = c.Chunk(context.Background(), pagesOf("blank.pdf", "", "   \n\n  "))
	assert.ErrorIs(t, err, domain.ErrChunking)
}

func TestChunk_CancelledContext(t *testing.T) {
	c, err := NewRecursive(DefaultChunkSize, DefaultChunkOverlap, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Chunk(ctx, pagesOf("x.pdf", "text"))
	assert.ErrorIs(t, err, context.Canceled)
}
