package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
)

// PDFSource extracts plain text from each page of a PDF file.
type PDFSource struct{}

// Pages reads every page in order. Pages without a content stream are kept
// as empty strings so page numbering matches the physical document.
func (PDFSource) Pages(ctx context.Context, path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// TextPages serves pre-extracted page texts keyed by path.
type TextPages map[string][]string

// Pages returns the texts registered for path.
func (t TextPages) Pages(_ context.Context, path string) ([]string, error) {
	pages, ok := t[path]
	if !ok {
		return nil, fmt.Errorf("no pages registered for %s", path)
	}
	return pages, nil
}

// SaveUpload copies r into dir under the base name of name and returns the
// stored path. An existing file with the same name is overwritten.
func SaveUpload(dir, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", dst, err)
	}
	return dst, nil
}
