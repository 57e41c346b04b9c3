// Glance answers questions grounded in whatever is currently visible on the
// user's screen. A background actor keeps per-window analysis snapshots
// fresh; the query pipeline turns those snapshots into model context and
// validates the answers it gets back.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/normanking/glance/internal/analyzer"
	"github.com/normanking/glance/internal/bus"
	"github.com/normanking/glance/internal/config"
	"github.com/normanking/glance/internal/history"
	"github.com/normanking/glance/internal/llm"
	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/internal/metrics"
	"github.com/normanking/glance/internal/pipeline"
	"github.com/normanking/glance/internal/screen"
	"github.com/normanking/glance/internal/search"
	"github.com/normanking/glance/internal/server"
	"github.com/normanking/glance/internal/websearch"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "glance",
		Short:   "Screen-grounded desktop assistant",
		Version: version,
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.glance/config.yaml)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newAskCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Logging.Level)
	logCfg.FilePath = cfg.Logging.File
	logging.SetGlobal(logging.New(logCfg))
	if cfg.Logging.Quiet {
		logging.DisableConsoleOutput()
	}
}

// app holds the wired collaborators shared by the serve and ask commands.
type app struct {
	cfg      *config.Config
	events   *bus.Bus
	cache    *screen.Cache
	actor    *screen.Actor
	pipeline *pipeline.Pipeline
	index    *search.FTSIndex
	store    *history.Store
}

func buildApp(cfg *config.Config) (*app, error) {
	events := bus.New()

	cache, err := screen.NewCache(screen.FreshnessPolicy{
		ActiveTTL:     cfg.Cache.ActiveTTL,
		BackgroundTTL: cfg.Cache.BackgroundTTL,
		StaleCeiling:  cfg.Cache.StaleCeiling,
		MaxWindows:    cfg.Cache.MaxWindows,
	})
	if err != nil {
		return nil, err
	}

	index, err := search.NewFTSIndex(search.IndexConfig{
		DBPath:       cfg.Search.DBPath,
		RecentWindow: cfg.Search.RecentWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("open element index: %w", err)
	}

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("open conversation store: %w", err)
	}

	az := analyzer.NewClient(analyzer.ClientConfig{Endpoint: cfg.Analyzer.Endpoint})
	foreground := screen.NewOSProvider()

	actor := screen.NewActor(cache, foreground, az, events, screen.ActorConfig{
		PollInterval:   cfg.Cache.PollInterval,
		SweepInterval:  cfg.Cache.SweepInterval,
		RequestTimeout: cfg.Analyzer.RequestTimeout,
		MaxFailures:    cfg.Analyzer.MaxFailures,
	})
	actor.SetIndexer(index)

	gate := pipeline.NewGate(cache, events, pipeline.GateConfig{
		PollInterval: cfg.Gate.PollInterval,
		Budget:       cfg.Gate.Budget,
	})

	builder := pipeline.NewBuilder(cache, az, index, pipeline.BuilderConfig{
		SearchTopK:     cfg.Search.TopK,
		SearchMinScore: cfg.Search.MinScore,
		SearchTimeout:  cfg.Search.Timeout,
		FreshTimeout:   cfg.Analyzer.FreshTimeout,
	})
	builder.SetIndexer(index)

	generator := llm.NewOllama(llm.OllamaConfig{
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})

	p := pipeline.New(gate, builder, generator, foreground, events, pipeline.Config{
		Validator: pipeline.ValidatorConfig{
			MinAnswerLength: cfg.Validator.MinAnswerLength,
		},
		MaxRetries:     cfg.Validator.MaxRetries,
		HistoryLimit:   cfg.History.FetchLimit,
		HistoryTimeout: cfg.History.FetchTimeout,
		WebLimit:       cfg.WebSearch.Limit,
	})
	p.SetHistory(store, store)
	p.SetWebSearch(websearch.NewClient(websearch.ClientConfig{
		Endpoint: cfg.WebSearch.Endpoint,
		Timeout:  cfg.WebSearch.Timeout,
	}))

	return &app{
		cfg:      cfg,
		events:   events,
		cache:    cache,
		actor:    actor,
		pipeline: p,
		index:    index,
		store:    store,
	}, nil
}

func (a *app) close() {
	a.actor.Stop()
	a.index.Close()
	a.store.Close()
	a.events.Close()
}

// newServeCmd runs the background actor and an interactive prompt until
// interrupted.
func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the screen-cache actor and answer questions interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			a.actor.Start(ctx)

			collector := metrics.NewCollector(a.events)
			collector.Start()
			defer collector.Stop()

			if cfg.Server.Addr != "" {
				events := server.New(cfg.Server.Addr, a.events, collector)
				events.Start()
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer shutdownCancel()
					events.Stop(shutdownCtx)
				}()
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			sessionID := uuid.NewString()
			queries := readQueries(ctx)

			fmt.Println("glance ready; ask about your screen (ctrl-d to quit)")
			for {
				select {
				case <-sigCh:
					return nil
				case query, ok := <-queries:
					if !ok {
						return nil
					}
					answer, err := a.pipeline.Answer(ctx, sessionID, query)
					if err != nil {
						logging.Error("query failed: %v", err)
						continue
					}
					if answer.Degraded {
						fmt.Println("(screen analysis unavailable, answering without screen context)")
					}
					fmt.Println(answer.Text)
				}
			}
		},
	}
}

// readQueries feeds stdin lines to the serve loop.
func readQueries(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			query := strings.TrimSpace(scanner.Text())
			if query == "" {
				continue
			}
			select {
			case out <- query:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// newAskCmd answers a single question and exits.
func newAskCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question about the current screen",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			cfg.Logging.Quiet = true
			setupLogging(cfg)

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			a.actor.Start(ctx)

			answer, err := a.pipeline.Answer(ctx, uuid.NewString(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if answer.Degraded {
				fmt.Fprintln(os.Stderr, "(screen analysis unavailable, answering without screen context)")
			}
			fmt.Println(answer.Text)
			return nil
		},
	}
}
