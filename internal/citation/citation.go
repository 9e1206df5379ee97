// Package citation condenses per-chunk source records into one citation per
// source file.
package citation

import (
	"fmt"
	"sort"

	"docuchat/internal/domain"
)

// UnknownFile names records whose chunk carries no filename.
const UnknownFile = "Unknown"

// Aggregate groups records by filename in order of first appearance. Pages
// are deduplicated and sorted; page 0 means the page was not recorded.
func Aggregate(records []domain.SourceRecord) []domain.SourceCitation {
	if len(records) == 0 {
		return nil
	}

	type group struct {
		pages  map[int]struct{}
		chunks int
	}
	var order []string
	groups := make(map[string]*group)
	for _, r := range records {
		name := r.Chunk.Source.Filename
		if name == "" {
			name = UnknownFile
		}
		g, ok := groups[name]
		if !ok {
			g = &group{pages: make(map[int]struct{})}
			groups[name] = g
			order = append(order, name)
		}
		if p := r.Chunk.PageNumber; p > 0 {
			g.pages[p] = struct{}{}
		}
		g.chunks++
	}

	out := make([]domain.SourceCitation, 0, len(order))
	for _, name := range order {
		g := groups[name]
		pages := make([]int, 0, len(g.pages))
		for p := range g.pages {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		out = append(out, domain.SourceCitation{
			Filename:   name,
			Pages:      pages,
			ChunkCount: g.chunks,
			PageRange:  pageRange(pages),
		})
	}
	return out
}

func pageRange(sorted []int) string {
	if len(sorted) == 0 {
		return "N/A"
	}
	return fmt.Sprintf("Pages %d-%d", sorted[0], sorted[len(sorted)-1])
}
