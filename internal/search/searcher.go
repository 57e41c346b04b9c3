// Package search provides ranked retrieval over indexed screen elements.
// The default implementation is a local SQLite FTS5 index kept in step with
// the screen cache; remote element-search services satisfy the same
// interface.
package search

import (
	"context"

	"github.com/normanking/glance/pkg/types"
)

// Options filters and bounds a ranked element search.
type Options struct {
	Limit      int     // top-k results (default 10)
	MinScore   float64 // drop hits below this normalized score
	App        string  // restrict to one application ("" = all)
	RecentOnly bool    // restrict to the recency window
}

// Searcher is the element-search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) ([]types.SearchHit, error)
}

// Func adapts a closure to the Searcher interface.
type Func func(ctx context.Context, query string, opts Options) ([]types.SearchHit, error)

// Search implements Searcher.
func (f Func) Search(ctx context.Context, query string, opts Options) ([]types.SearchHit, error) {
	return f(ctx, query, opts)
}
