// Package analyzer defines the contract with the external screen-analyzer
// service and provides a websocket client for it. Extraction internals (OCR,
// accessibility trees, browser DOM) live entirely on the other side of this
// boundary.
package analyzer

import (
	"context"
	"errors"

	"github.com/normanking/glance/pkg/types"
)

// ErrUnavailable indicates the analyzer service is unreachable. The pipeline
// degrades to answering without screen grounding rather than failing.
var ErrUnavailable = errors.New("screen analyzer unavailable")

// Request asks the analyzer to extract the current screen content.
type Request struct {
	ID       string `json:"id"`
	Identity string `json:"identity"` // flat window-identity key
	App      string `json:"app"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`

	// SkipEmbedding tells the analyzer not to compute element embeddings.
	// Simple-mode queries only need the text summary, and embedding is the
	// expensive part of an analysis pass.
	SkipEmbedding bool `json:"skip_embedding,omitempty"`
}

// Analyzer is the screen-analysis collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*types.AnalysisResult, error)
}

// Func adapts a closure to the Analyzer interface.
type Func func(ctx context.Context, req Request) (*types.AnalysisResult, error)

// Analyze implements Analyzer.
func (f Func) Analyze(ctx context.Context, req Request) (*types.AnalysisResult, error) {
	return f(ctx, req)
}
