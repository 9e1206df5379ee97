package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
)

type failingSource struct{ err error }

func (f failingSource) Pages(context.Context, string) ([]string, error) { return nil, f.err }

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func TestLoad_EnrichesEveryPage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "handbook.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	src := TextPages{path: {"first", "second", "third"}}
	e := NewEnricher(src, nil, WithClock(fixedClock))

	pages, err := e.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for i, p := range pages {
		assert.Equal(t, i+1, p.PageNumber)
		assert.Equal(t, path, p.Source.Path)
		assert.Equal(t, "handbook.pdf", p.Source.Filename)
		assert.Equal(t, int64(len("%PDF-1.4 fake")), p.Source.SizeBytes)
		assert.Equal(t, domain.FileTypePDF, p.Source.FileType)
		assert.Equal(t, fixedClock(), p.Source.UploadedAt)
	}
	assert.Equal(t, "second", pages[1].Text)
}

func TestLoad_ProvenanceIsCopied(t *testing.T) {
	src := TextPages{"a.pdf": {"one", "two"}}
	pages, err := NewEnricher(src, nil).Load(context.Background(), "a.pdf")
	require.NoError(t, err)

	pages[0].Source.Filename = "changed"
	assert.Equal(t, "a.pdf", pages[1].Source.Filename)
}

func TestLoad_MissingFileKeepsNameWithoutSize(t *testing.T) {
	src := TextPages{"/nowhere/report.pdf": {"text"}}
	pages, err := NewEnricher(src, nil).Load(context.Background(), "/nowhere/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", pages[0].Source.Filename)
	assert.Zero(t, pages[0].Source.SizeBytes)
}

func TestLoad_ZeroPagesIsIngestionError(t *testing.T) {
	src := TextPages{"empty.pdf": {}}
	_, err := NewEnricher(src, nil).Load(context.Background(), "empty.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIngestion)
	assert.Contains(t, err.Error(), "empty.pdf")
}

func TestLoad_SourceFailureIsIngestionError(t *testing.T) {
	e := NewEnricher(failingSource{err: errors.New("corrupt xref")}, nil)
	_, err := e.Load(context.Background(), "broken.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIngestion)
	assert.Contains(t, err.Error(), "corrupt xref")
}

func TestLoad_SourceErrorStaysInspectable(t *testing.T) {
	e := NewEnricher(failingSource{err: context.Canceled}, nil)
	_, err := e.Load(context.Background(), "slow.pdf")
	assert.ErrorIs(t, err, domain.ErrIngestion)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFSource_RejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	_, err := PDFSource{}.Pages(context.Background(), path)
	assert.Error(t, err)
}

func TestSaveUpload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pdfs")
	path, err := SaveUpload(dir, "../../escape/report.pdf", strings.NewReader("bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))
}
