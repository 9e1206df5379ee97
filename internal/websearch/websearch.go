// Package websearch describes the external search adapter used when the
// document corpus cannot answer a question.
package websearch

import (
	"context"

	"docuchat/internal/domain"
)

// Func adapts a plain function to domain.Searcher.
type Func func(ctx context.Context, query string) (string, error)

func (f Func) Search(ctx context.Context, query string) (string, error) { return f(ctx, query) }

// Available reports whether s can be called. An unconfigured adapter is
// represented by a nil Searcher.
func Available(s domain.Searcher) bool {
	switch v := s.(type) {
	case nil:
		return false
	case Func:
		return v != nil
	default:
		return true
	}
}
