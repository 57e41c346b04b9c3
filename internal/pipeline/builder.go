package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/glance/internal/analyzer"
	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/internal/screen"
	"github.com/normanking/glance/internal/search"
	"github.com/normanking/glance/internal/strategy"
	"github.com/normanking/glance/pkg/types"
)

// noElementsBlock is emitted whenever no screen elements are available, so
// the answering step never receives a context block indistinguishable from
// "no context was requested".
const noElementsBlock = "No relevant screen elements were found for this query."

// BuilderConfig bounds the builder's external calls and output size.
type BuilderConfig struct {
	MaxLinks       int           // link preview cap in simple mode
	SearchTopK     int           // ranked search result count
	SearchMinScore float64       // ranked search score floor
	SearchTimeout  time.Duration // per ranked search call
	FreshTimeout   time.Duration // per synchronous fresh analysis
}

// DefaultBuilderConfig returns the shipped builder settings.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MaxLinks:       5,
		SearchTopK:     8,
		SearchMinScore: 0.3,
		SearchTimeout:  5 * time.Second,
		FreshTimeout:   60 * time.Second,
	}
}

// Builder assembles the textual context block handed to the answering
// model, from either the cached structured summary or ranked search
// results.
type Builder struct {
	cache    *screen.Cache
	analyzer analyzer.Analyzer
	searcher search.Searcher
	indexer  screen.SnapshotIndexer // optional
	log      *logging.Logger
	config   BuilderConfig
}

// NewBuilder creates a context builder sharing the actor's cache.
func NewBuilder(cache *screen.Cache, az analyzer.Analyzer, searcher search.Searcher, cfg BuilderConfig) *Builder {
	def := DefaultBuilderConfig()
	if cfg.MaxLinks <= 0 {
		cfg.MaxLinks = def.MaxLinks
	}
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = def.SearchTopK
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.FreshTimeout <= 0 {
		cfg.FreshTimeout = def.FreshTimeout
	}

	return &Builder{
		cache:    cache,
		analyzer: az,
		searcher: searcher,
		log:      logging.Global().WithComponent("ContextBuilder"),
		config:   cfg,
	}
}

// SetIndexer attaches a snapshot indexer so forced-fresh analyses feed the
// element index the same way the actor's do.
func (b *Builder) SetIndexer(ix screen.SnapshotIndexer) {
	b.indexer = ix
}

// Fresh performs a synchronous analysis, bypassing the actor's decision
// loop, and writes the result through the same cache API. Used when the
// readiness gate times out.
func (b *Builder) Fresh(ctx context.Context, sample screen.Sample, skipEmbedding bool) (*screen.Entry, error) {
	identity := sample.Identity()

	reqCtx, cancel := context.WithTimeout(ctx, b.config.FreshTimeout)
	defer cancel()

	result, err := b.analyzer.Analyze(reqCtx, analyzer.Request{
		ID:            uuid.NewString(),
		Identity:      identity.String(),
		App:           sample.App,
		Title:         sample.Title,
		URL:           sample.URL,
		SkipEmbedding: skipEmbedding,
	})
	if err != nil {
		return nil, fmt.Errorf("fresh analysis: %w", err)
	}

	entry := b.cache.Put(identity, result)
	if b.indexer != nil {
		if err := b.indexer.IndexSnapshot(ctx, identity.String(), sample.App, entry.CapturedAt, entry.Elements); err != nil {
			b.log.Warn("element indexing failed for %s: %v", identity.String(), err)
		}
	}
	return entry, nil
}

// Build produces the context block for a classified query. The second
// return value reports whether real screen elements made it into the block;
// the validator uses it to tell a grounded negative from an ungrounded one.
func (b *Builder) Build(ctx context.Context, query string, d strategy.Decision, sample screen.Sample, entry *screen.Entry) (string, bool) {
	if d.Strategy == strategy.StrategySemantic {
		return b.buildSemantic(ctx, query, d, sample)
	}
	return b.buildSimple(sample, entry)
}

// buildSimple dumps the structured summary: application, title, then the
// navigational buckets ahead of the prose so structure is visible to the
// model before the full text.
func (b *Builder) buildSimple(sample screen.Sample, entry *screen.Entry) (string, bool) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Application: %s\n", sample.App)
	if sample.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", sample.Title)
	}

	if entry == nil || entry.ElementCount() == 0 {
		sb.WriteString("\n" + noElementsBlock + "\n")
		if entry != nil && entry.FullText != "" {
			sb.WriteString("\nScreen text:\n" + entry.FullText + "\n")
			return sb.String(), true
		}
		return sb.String(), false
	}

	buckets := bucketElements(entry.Elements)
	writeBucket(&sb, "Menu items", buckets[types.ElementMenuItem], 0)
	writeBucket(&sb, "Headings", buckets[types.ElementHeading], 0)
	writeBucket(&sb, "Buttons", buckets[types.ElementButton], 0)
	writeBucket(&sb, "Links", buckets[types.ElementLink], b.config.MaxLinks)

	if entry.FullText != "" {
		sb.WriteString("\nScreen text:\n" + entry.FullText + "\n")
	}
	return sb.String(), true
}

// bucketElements groups element labels by type, preserving order.
func bucketElements(elements []types.Element) map[types.ElementType][]string {
	buckets := make(map[types.ElementType][]string)
	for _, el := range elements {
		label := el.Text
		if label == "" {
			label = el.Value
		}
		if label == "" {
			continue
		}
		buckets[el.Type] = append(buckets[el.Type], label)
	}
	return buckets
}

// writeBucket emits one "Name: a, b, c" line; limit > 0 truncates with an
// explicit "and N more" suffix.
func writeBucket(sb *strings.Builder, name string, labels []string, limit int) {
	if len(labels) == 0 {
		return
	}
	if limit > 0 && len(labels) > limit {
		rest := len(labels) - limit
		fmt.Fprintf(sb, "%s: %s (and %d more)\n", name, strings.Join(labels[:limit], ", "), rest)
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", name, strings.Join(labels, ", "))
}

// buildSemantic runs a ranked element search restricted to the active
// application and a recency window, then formats the top results. A failed
// search degrades to the no-elements block rather than propagating.
func (b *Builder) buildSemantic(ctx context.Context, query string, d strategy.Decision, sample screen.Sample) (string, bool) {
	searchCtx, cancel := context.WithTimeout(ctx, b.config.SearchTimeout)
	defer cancel()

	hits, err := b.searcher.Search(searchCtx, query, search.Options{
		Limit:      b.config.SearchTopK,
		MinScore:   b.config.SearchMinScore,
		App:        sample.App,
		RecentOnly: true,
	})
	if err != nil {
		b.log.Warn("element search failed: %v", err)
		return noElementsBlock, false
	}
	if len(hits) == 0 {
		return noElementsBlock, false
	}

	if d.TargetRegion != "" {
		hits = reorderByRegion(hits, d.TargetRegion)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Relevant screen elements (%s):\n", sample.App)
	for _, hit := range hits {
		fmt.Fprintf(&sb, "- %s", hit.Type)
		if hit.Text != "" {
			fmt.Fprintf(&sb, " %q", hit.Text)
		}
		fmt.Fprintf(&sb, " (%.0f%% match", hit.Score*100)
		if hit.Bounds != nil {
			// Display geometry can differ from the cached bounds, so the
			// label is computed at display resolution here.
			fmt.Fprintf(&sb, ", %s", screen.RegionForBounds(*hit.Bounds, types.DefaultViewport))
		}
		sb.WriteString(")\n")
	}
	return sb.String(), true
}

// reorderByRegion surfaces elements in the target region first. Within the
// region, links and images outrank buttons and inputs: when the user asks
// about a location they want the content there, not the controls.
func reorderByRegion(hits []types.SearchHit, target screen.Region) []types.SearchHit {
	rank := func(h types.SearchHit) int {
		if h.Bounds == nil || screen.RegionForBounds(*h.Bounds, types.DefaultViewport) != target {
			return 3
		}
		switch h.Type {
		case types.ElementLink, types.ElementImage:
			return 0
		case types.ElementButton, types.ElementInput:
			return 2
		default:
			return 1
		}
	}

	reordered := make([]types.SearchHit, len(hits))
	copy(reordered, hits)
	sort.SliceStable(reordered, func(i, j int) bool {
		return rank(reordered[i]) < rank(reordered[j])
	})
	return reordered
}
