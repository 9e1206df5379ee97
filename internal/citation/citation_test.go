package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/domain"
)

func record(n int, file string, page int) domain.SourceRecord {
	return domain.SourceRecord{
		Number: n,
		Chunk: domain.Chunk{
			PageNumber: page,
			Source:     domain.SourceDocument{Filename: file},
		},
	}
}

func TestAggregate_TwoFiles(t *testing.T) {
	got := Aggregate([]domain.SourceRecord{
		record(1, "annual.pdf", 3),
		record(2, "memo.pdf", 1),
		record(3, "annual.pdf", 1),
		record(4, "annual.pdf", 2),
		record(5, "annual.pdf", 2),
	})
	require.Len(t, got, 2)

	assert.Equal(t, domain.SourceCitation{
		Filename: "annual.pdf", Pages: []int{1, 2, 3}, ChunkCount: 4, PageRange: "Pages 1-3",
	}, got[0])
	assert.Equal(t, domain.SourceCitation{
		Filename: "memo.pdf", Pages: []int{1}, ChunkCount: 1, PageRange: "Pages 1-1",
	}, got[1])
}

func TestAggregate_MissingMetadata(t *testing.T) {
	got := Aggregate([]domain.SourceRecord{
		record(1, "", 0),
		record(2, "", 4),
		record(3, "scan.pdf", 0),
	})
	require.Len(t, got, 2)

	assert.Equal(t, UnknownFile, got[0].Filename)
	assert.Equal(t, []int{4}, got[0].Pages)
	assert.Equal(t, 2, got[0].ChunkCount)

	assert.Equal(t, "scan.pdf", got[1].Filename)
	assert.Empty(t, got[1].Pages)
	assert.Equal(t, "N/A", got[1].PageRange)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}
