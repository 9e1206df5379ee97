package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handbook = `Vacation days accrue monthly. The cafeteria
opens at nine. Vacation days roll over yearly! Parking is free.
Unused vacation days expire.`

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	out, err := New().Summarize(handbook, 3)
	require.NoError(t, err)

	assert.Equal(t,
		"Vacation days accrue monthly. Vacation days roll over yearly! Unused vacation days expire.",
		out)
}

func TestSummarize_LimitLargerThanText(t *testing.T) {
	out, err := New().Summarize("One sentence only.", 10)
	require.NoError(t, err)
	assert.Equal(t, "One sentence only.", out)
}

func TestSummarize_NoPunctuation(t *testing.T) {
	out, err := New().Summarize("  heading\n without   stop ", 3)
	require.NoError(t, err)
	assert.Equal(t, "heading without stop", out)
}

func TestSummarize_Empty(t *testing.T) {
	out, err := New().Summarize(" \n\t ", 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSummarize_DefaultLimit(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma. ", 6)
	out, err := New().Summarize(text, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSentences, strings.Count(out, "."))
}
