package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/glance/internal/analyzer"
	"github.com/normanking/glance/internal/screen"
	"github.com/normanking/glance/internal/search"
	"github.com/normanking/glance/internal/strategy"
	"github.com/normanking/glance/pkg/types"
)

func noSearch() search.Searcher {
	return search.Func(func(ctx context.Context, query string, opts search.Options) ([]types.SearchHit, error) {
		return nil, nil
	})
}

func shopEntry(t *testing.T, cache *screen.Cache, sample screen.Sample) *screen.Entry {
	t.Helper()
	elements := []types.Element{
		{Type: types.ElementMenuItem, Text: "File"},
		{Type: types.ElementMenuItem, Text: "Edit"},
		{Type: types.ElementHeading, Text: "Checkout"},
		{Type: types.ElementButton, Text: "Submit order"},
		{Type: types.ElementButton, Text: "Cancel"},
	}
	for i := 0; i < 8; i++ {
		elements = append(elements, types.Element{Type: types.ElementLink, Text: fmt.Sprintf("link-%d", i)})
	}
	return cache.Put(sample.Identity(), &types.AnalysisResult{
		Elements: elements,
		FullText: "Your order total is $42.",
	})
}

func TestSimpleModeOrdering(t *testing.T) {
	cache := newTestCache(t)
	sample := chromeSample()
	entry := shopEntry(t, cache, sample)

	builder := NewBuilder(cache, nil, noSearch(), BuilderConfig{MaxLinks: 5})

	block, hadScreen := builder.Build(context.Background(), "what is on my screen", strategy.Decision{Strategy: strategy.StrategySimple}, sample, entry)
	assert.True(t, hadScreen)

	// Navigational structure must precede the prose.
	positions := []int{
		strings.Index(block, "Application: Chrome"),
		strings.Index(block, "Title: Example Shop"),
		strings.Index(block, "Menu items: File, Edit"),
		strings.Index(block, "Headings: Checkout"),
		strings.Index(block, "Buttons: Submit order, Cancel"),
		strings.Index(block, "Links:"),
		strings.Index(block, "Screen text:"),
		strings.Index(block, "Your order total is $42."),
	}
	for i, pos := range positions {
		require.GreaterOrEqual(t, pos, 0, "section %d missing in:\n%s", i, block)
		if i > 0 {
			assert.Greater(t, pos, positions[i-1], "section %d out of order in:\n%s", i, block)
		}
	}
}

func TestSimpleModeCapsLinks(t *testing.T) {
	cache := newTestCache(t)
	sample := chromeSample()
	entry := shopEntry(t, cache, sample)

	builder := NewBuilder(cache, nil, noSearch(), BuilderConfig{MaxLinks: 5})

	block, _ := builder.Build(context.Background(), "describe this page", strategy.Decision{Strategy: strategy.StrategySimple}, sample, entry)
	assert.Contains(t, block, "(and 3 more)")
	assert.NotContains(t, block, "link-7")
}

func TestSimpleModeWithoutEntry(t *testing.T) {
	cache := newTestCache(t)
	builder := NewBuilder(cache, nil, noSearch(), BuilderConfig{})

	block, hadScreen := builder.Build(context.Background(), "what is on my screen", strategy.Decision{Strategy: strategy.StrategySimple}, chromeSample(), nil)
	assert.False(t, hadScreen)
	assert.Contains(t, block, "Application: Chrome")
	assert.Contains(t, block, noElementsBlock)
}

func TestSemanticModeFormatsHits(t *testing.T) {
	cache := newTestCache(t)
	searcher := search.Func(func(ctx context.Context, query string, opts search.Options) ([]types.SearchHit, error) {
		assert.Equal(t, "Chrome", opts.App)
		assert.True(t, opts.RecentOnly)
		return []types.SearchHit{
			{Type: types.ElementButton, Text: "Submit order", Score: 0.82, Bounds: &types.BoundingBox{X: 900, Y: 950, Width: 100, Height: 40}},
			{Type: types.ElementLink, Text: "View details", Score: 0.64},
		}, nil
	})

	builder := NewBuilder(cache, nil, searcher, BuilderConfig{})

	block, hadScreen := builder.Build(context.Background(), "find the submit button", strategy.Decision{Strategy: strategy.StrategySemantic}, chromeSample(), nil)
	assert.True(t, hadScreen)
	assert.Contains(t, block, `button "Submit order" (82% match, lower center)`)
	assert.Contains(t, block, `link "View details" (64% match)`)
}

func TestSemanticModeRegionReorder(t *testing.T) {
	cache := newTestCache(t)
	lowerRight := &types.BoundingBox{X: 1700, Y: 950, Width: 100, Height: 40}
	upperLeft := &types.BoundingBox{X: 50, Y: 50, Width: 100, Height: 40}

	searcher := search.Func(func(ctx context.Context, query string, opts search.Options) ([]types.SearchHit, error) {
		return []types.SearchHit{
			{Type: types.ElementText, Text: "header text", Score: 0.9, Bounds: upperLeft},
			{Type: types.ElementButton, Text: "corner button", Score: 0.8, Bounds: lowerRight},
			{Type: types.ElementLink, Text: "corner link", Score: 0.7, Bounds: lowerRight},
		}, nil
	})

	builder := NewBuilder(cache, nil, searcher, BuilderConfig{})

	block, _ := builder.Build(context.Background(), "what's in the lower right corner", strategy.Decision{
		Strategy:     strategy.StrategySemantic,
		TargetRegion: screen.RegionLowerRight,
	}, chromeSample(), nil)

	linkPos := strings.Index(block, "corner link")
	buttonPos := strings.Index(block, "corner button")
	headerPos := strings.Index(block, "header text")
	require.True(t, linkPos >= 0 && buttonPos >= 0 && headerPos >= 0, block)

	// In-region elements surface first; links outrank buttons within the region.
	assert.Less(t, linkPos, buttonPos)
	assert.Less(t, buttonPos, headerPos)
}

func TestSemanticModeNoHits(t *testing.T) {
	builder := NewBuilder(newTestCache(t), nil, noSearch(), BuilderConfig{})

	block, hadScreen := builder.Build(context.Background(), "find the missing thing", strategy.Decision{Strategy: strategy.StrategySemantic}, chromeSample(), nil)
	assert.False(t, hadScreen)
	assert.Equal(t, noElementsBlock, block)
}

func TestSemanticModeSearchFailureDegrades(t *testing.T) {
	searcher := search.Func(func(ctx context.Context, query string, opts search.Options) ([]types.SearchHit, error) {
		return nil, fmt.Errorf("index offline")
	})
	builder := NewBuilder(newTestCache(t), nil, searcher, BuilderConfig{})

	block, hadScreen := builder.Build(context.Background(), "find the button", strategy.Decision{Strategy: strategy.StrategySemantic}, chromeSample(), nil)
	assert.False(t, hadScreen)
	assert.Equal(t, noElementsBlock, block)
}

type captureIndexer struct {
	mu         sync.Mutex
	identities []string
}

func (c *captureIndexer) IndexSnapshot(ctx context.Context, identity, app string, capturedAt time.Time, elements []types.Element) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identities = append(c.identities, identity)
	return nil
}

func TestFreshAnalysisWritesThroughCache(t *testing.T) {
	cache := newTestCache(t)
	sample := chromeSample()

	az := analyzer.Func(func(ctx context.Context, req analyzer.Request) (*types.AnalysisResult, error) {
		assert.Equal(t, sample.Identity().String(), req.Identity)
		assert.True(t, req.SkipEmbedding)
		return &types.AnalysisResult{
			Elements: []types.Element{{Type: types.ElementHeading, Text: "Fresh"}},
		}, nil
	})

	builder := NewBuilder(cache, az, noSearch(), BuilderConfig{})
	indexer := &captureIndexer{}
	builder.SetIndexer(indexer)

	entry, err := builder.Fresh(context.Background(), sample, true)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.ElementCount())

	cached, ok := cache.Get(sample.Identity(), true)
	require.True(t, ok)
	assert.Equal(t, "Fresh", cached.Elements[0].Text)

	require.Len(t, indexer.identities, 1)
	assert.Equal(t, sample.Identity().String(), indexer.identities[0])
}

func TestFreshAnalysisFailure(t *testing.T) {
	az := analyzer.Func(func(ctx context.Context, req analyzer.Request) (*types.AnalysisResult, error) {
		return nil, analyzer.ErrUnavailable
	})
	builder := NewBuilder(newTestCache(t), az, noSearch(), BuilderConfig{})

	_, err := builder.Fresh(context.Background(), chromeSample(), false)
	require.Error(t, err)
}
