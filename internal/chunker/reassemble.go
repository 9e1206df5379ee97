package chunker

import (
	"sort"
	"strings"

	"docuchat/internal/domain"
)

// Reassemble rebuilds the concatenated page texts from chunks produced by a
// single Chunk call, dropping the overlap between neighbouring chunks of a
// page. Input order does not matter; chunks are ordered by ChunkIndex.
func Reassemble(chunks []domain.Chunk) string {
	ordered := make([]domain.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChunkIndex < ordered[j].ChunkIndex
	})

	type pageKey struct {
		path string
		page int
	}
	var (
		sb      strings.Builder
		current pageKey
		covered int
		started bool
	)
	for _, ch := range ordered {
		key := pageKey{ch.Source.Path, ch.PageNumber}
		if !started || key != current {
			current, covered, started = key, 0, true
		}
		end := ch.StartOffset + len(ch.Text)
		if end <= covered {
			continue
		}
		skip := covered - ch.StartOffset
		if skip < 0 {
			skip = 0
		}
		sb.WriteString(ch.Text[skip:])
		covered = end
	}
	return sb.String()
}
