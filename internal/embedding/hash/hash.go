// Package hash implements an offline embedder using the hashing trick over
// word unigrams and bigrams.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"docuchat/internal/domain"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 512

// Embedder maps tokens into a fixed number of signed buckets. It needs no
// corpus preparation, so vectors stay comparable across ingestions.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

var _ domain.Embedder = (*Embedder)(nil)

// NewEmbedder creates an embedder producing vectors of the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hash" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes a sublinear term-frequency vector, L2 normalized. Text
// without any token yields the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := e.tokenize(text)
	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}

	acc := make([]float64, e.dimension)
	for term, n := range counts {
		idx, sign := e.bucket(term)
		acc[idx] += sign * (1 + math.Log(float64(n)))
	}

	// L2 normalize
	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

func (e *Embedder) bucket(term string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "so", "such", "into", "about", "than", "can", "will", "just", "should", "what", "which", "who", "how", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
