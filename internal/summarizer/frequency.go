// Package summarizer builds short extractive digests of ingested documents.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"docuchat/internal/domain"
)

// DefaultMaxSentences is used when a non-positive limit is requested.
const DefaultMaxSentences = 3

var (
	sentencePattern   = regexp.MustCompile(`[^.!?]+[.!?]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Frequency ranks sentences by the normalised frequency of their content
// words and returns the best ones in document order.
type Frequency struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

var _ domain.Summarizer = (*Frequency)(nil)

func New() *Frequency {
	return &Frequency{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Summarize returns at most maxSentences sentences of text. Text without
// sentence punctuation is returned whitespace-normalised.
func (s *Frequency) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	// PDF extraction breaks lines mid-sentence.
	flat := strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if flat == "" {
		return "", nil
	}
	sentences := sentencePattern.FindAllString(flat, -1)
	if len(sentences) == 0 {
		return flat, nil
	}

	tokenized := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokenized[i] = s.contentTokens(sent)
		for _, tok := range tokenized[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, toks := range tokenized {
		sum := 0.0
		for _, tok := range toks {
			sum += freq[tok] / maxF
		}
		// Normalize by sentence length to avoid bias
		if n := float64(len(toks)); n > 0 {
			sum /= math.Sqrt(n)
		}
		scores[i] = scored{i, sum}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = strings.TrimSpace(sentences[idx])
	}
	return strings.Join(out, " "), nil
}

func (s *Frequency) contentTokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := s.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "out", "off", "too", "very", "can", "will", "just", "should", "now", "we", "our", "you", "your", "they", "their",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
