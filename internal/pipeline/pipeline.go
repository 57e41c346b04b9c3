// Package pipeline assembles the query-time path: readiness gate, context
// building, answer generation, and the validation/retry loop. Within one
// query the stages run in strict order; across queries everything is
// independent and may interleave cache reads freely.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/glance/internal/analyzer"
	"github.com/normanking/glance/internal/bus"
	"github.com/normanking/glance/internal/history"
	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/internal/screen"
	"github.com/normanking/glance/internal/strategy"
	"github.com/normanking/glance/internal/websearch"
	"github.com/normanking/glance/pkg/types"
)

// Generator produces an answer from a query, its context block, and prior
// conversation. It is the external answering model behind an interface.
type Generator interface {
	Generate(ctx context.Context, query, contextBlock string, history []types.Message) (string, error)
}

// GeneratorFunc adapts a closure to the Generator interface.
type GeneratorFunc func(ctx context.Context, query, contextBlock string, history []types.Message) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, query, contextBlock string, history []types.Message) (string, error) {
	return f(ctx, query, contextBlock, history)
}

// Config tunes the query pipeline.
type Config struct {
	Validator      ValidatorConfig
	MaxRetries     int           // answer retries per query (default 1)
	HistoryLimit   int           // conversation turns fetched (default 10)
	HistoryTimeout time.Duration // per history fetch (default 2s)
	WebLimit       int           // web results injected on retry (default 5)
}

// DefaultConfig returns the shipped pipeline settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     1,
		HistoryLimit:   10,
		HistoryTimeout: 2 * time.Second,
		WebLimit:       5,
	}
}

// Answer is the pipeline's result for one query.
type Answer struct {
	QueryID  string
	Text     string
	Strategy strategy.Strategy
	Retries  int
	Issues   []Issue // issues remaining after the final pass
	Degraded bool    // answered without screen grounding
}

// Pipeline wires the query path together. History, web search, and the
// conversation recorder are optional; a nil collaborator disables that
// stage rather than failing queries.
type Pipeline struct {
	gate       *Gate
	builder    *Builder
	validator  *Validator
	generator  Generator
	foreground screen.ForegroundProvider
	historian  history.Provider
	recorder   history.Recorder
	web        websearch.Searcher
	events     *bus.Bus
	log        *logging.Logger
	config     Config
}

// New creates a pipeline over the shared cache and collaborators.
func New(gate *Gate, builder *Builder, generator Generator, fg screen.ForegroundProvider, events *bus.Bus, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = def.HistoryTimeout
	}
	if cfg.WebLimit <= 0 {
		cfg.WebLimit = def.WebLimit
	}

	return &Pipeline{
		gate:       gate,
		builder:    builder,
		validator:  NewValidator(cfg.Validator),
		generator:  generator,
		foreground: fg,
		events:     events,
		log:        logging.Global().WithComponent("Pipeline"),
		config:     cfg,
	}
}

// SetHistory attaches the conversation-history collaborators.
func (p *Pipeline) SetHistory(provider history.Provider, recorder history.Recorder) {
	p.historian = provider
	p.recorder = recorder
}

// SetWebSearch attaches the web-search collaborator used on retries.
func (p *Pipeline) SetWebSearch(web websearch.Searcher) {
	p.web = web
}

// Answer runs one query through the full pipeline: classify, gate, build
// context, generate, validate, and retry at most once. Every failure along
// the way degrades to answering with less context; only a generation
// failure with no answer at all is returned as an error.
func (p *Pipeline) Answer(ctx context.Context, sessionID, query string) (Answer, error) {
	queryID := uuid.NewString()

	started := bus.NewEvent(bus.EventQueryStarted)
	started.QueryID = queryID
	p.events.Publish(started)

	decision := strategy.Classify(query)
	p.log.Debug("query %s: strategy=%s rule=%s relevance=%.2f", queryID, decision.Strategy, decision.Rule, decision.Relevance)

	var (
		msgs         []types.Message
		contextBlock string
		hadScreen    bool
		degraded     bool
	)

	// History fetch and screen-context assembly are independent; run them
	// concurrently. Neither failure fails the query.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs = p.fetchHistory(gctx, sessionID, decision)
		return nil
	})
	g.Go(func() error {
		contextBlock, hadScreen, degraded = p.assembleContext(gctx, queryID, query, decision)
		return nil
	})
	_ = g.Wait() // both stages degrade instead of erroring

	if degraded {
		notice := bus.NewEvent(bus.EventDegradedMode)
		notice.QueryID = queryID
		notice.Message = "screen analysis unavailable, answering without screen context"
		p.events.Publish(notice)
	}

	text, err := p.generator.Generate(ctx, query, contextBlock, msgs)
	if err != nil {
		return Answer{QueryID: queryID}, fmt.Errorf("answer generation: %w", err)
	}

	hadWeb := false
	issues := p.validator.Validate(text, hadScreen, hadWeb)
	retries := NewRetryState(p.config.MaxRetries)

	for HasHighSeverity(issues) && retries.Allow() {
		if NeedsWebSearch(issues) && p.web != nil {
			if block := p.searchWeb(ctx, query); block != "" {
				contextBlock += "\n" + block
				hadWeb = true
			}
		}

		retried := bus.NewEvent(bus.EventAnswerRetried)
		retried.QueryID = queryID
		retried.Message = string(issues[0].Kind)
		p.events.Publish(retried)

		regenerated, err := p.generator.Generate(ctx, query, contextBlock, msgs)
		if err != nil {
			p.log.Warn("retry generation failed for %s: %v", queryID, err)
			break
		}
		text = regenerated
		issues = p.validator.Validate(text, hadScreen, hadWeb)
	}

	p.record(ctx, sessionID, query, text)

	completed := bus.NewEvent(bus.EventQueryCompleted)
	completed.QueryID = queryID
	p.events.Publish(completed)

	return Answer{
		QueryID:  queryID,
		Text:     text,
		Strategy: decision.Strategy,
		Retries:  retries.Count(),
		Issues:   issues,
		Degraded: degraded,
	}, nil
}

// fetchHistory pulls recent conversation turns when the relevance score
// says the query leans on them. Skipped entirely for self-contained
// queries.
func (p *Pipeline) fetchHistory(ctx context.Context, sessionID string, d strategy.Decision) []types.Message {
	if !d.FetchHistory || p.historian == nil {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.config.HistoryTimeout)
	defer cancel()

	msgs, err := p.historian.Recent(fetchCtx, sessionID, p.config.HistoryLimit)
	if err != nil {
		p.log.Warn("history fetch failed: %v", err)
		return nil
	}
	return msgs
}

// assembleContext resolves the foreground window, waits for the cache, and
// builds the context block. Returns the block, whether real screen
// elements are in it, and whether the pipeline is running degraded.
func (p *Pipeline) assembleContext(ctx context.Context, queryID, query string, d strategy.Decision) (string, bool, bool) {
	sample, err := p.foreground.Current(ctx)
	if err != nil || sample.Identity().IsZero() {
		p.log.Warn("foreground lookup failed: %v", err)
		return noElementsBlock, false, true
	}

	result := p.gate.Wait(ctx, sample.Identity(), queryID)

	entry := result.Entry
	degraded := false
	if result.ForceFresh {
		// Trade latency for correctness: analyze synchronously rather than
		// answering from stale or absent data.
		fresh, err := p.builder.Fresh(ctx, sample, d.Strategy == strategy.StrategySimple)
		if err != nil {
			p.log.Warn("forced-fresh analysis failed for %s: %v", sample.Identity().String(), err)
			degraded = errors.Is(err, analyzer.ErrUnavailable)
		} else {
			entry = fresh
		}
	}

	block, hadScreen := p.builder.Build(ctx, query, d, sample, entry)
	return block, hadScreen, degraded
}

// searchWeb fetches external results and formats them for context
// injection. Failures return an empty block.
func (p *Pipeline) searchWeb(ctx context.Context, query string) string {
	results, err := p.web.Search(ctx, query, p.config.WebLimit)
	if err != nil {
		p.log.Warn("web search failed: %v", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Web search results:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return sb.String()
}

// record appends both turns to the conversation store, best effort.
func (p *Pipeline) record(ctx context.Context, sessionID, query, answer string) {
	if p.recorder == nil {
		return
	}

	now := time.Now().UTC()
	if err := p.recorder.Append(ctx, sessionID, types.Message{Role: types.RoleUser, Content: query, Timestamp: now}); err != nil {
		p.log.Warn("recording user turn failed: %v", err)
		return
	}
	if err := p.recorder.Append(ctx, sessionID, types.Message{Role: types.RoleAssistant, Content: answer, Timestamp: now.Add(time.Millisecond)}); err != nil {
		p.log.Warn("recording assistant turn failed: %v", err)
	}
}
