// Package config loads and persists Glance configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the Glance screen-context
// pipeline. It is loaded from ~/.glance/config.yaml and can be overridden by
// environment variables (prefix GLANCE_).
type Config struct {
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Gate      GateConfig      `mapstructure:"gate" yaml:"gate"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer" yaml:"analyzer"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Validator ValidatorConfig `mapstructure:"validator" yaml:"validator"`
	WebSearch WebSearchConfig `mapstructure:"web_search" yaml:"web_search"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CacheConfig controls the screen cache and its background actor.
type CacheConfig struct {
	// ActiveTTL is how long a cache entry for the focused window stays fresh
	ActiveTTL time.Duration `mapstructure:"active_ttl" yaml:"active_ttl"`
	// BackgroundTTL is how long entries for unfocused windows stay fresh
	BackgroundTTL time.Duration `mapstructure:"background_ttl" yaml:"background_ttl"`
	// StaleCeiling is the absolute age beyond which an entry is never served
	StaleCeiling time.Duration `mapstructure:"stale_ceiling" yaml:"stale_ceiling"`
	// MaxWindows caps the number of resident cache entries
	MaxWindows int `mapstructure:"max_windows" yaml:"max_windows"`
	// PollInterval is how often the actor samples the foreground window
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// SweepInterval is how often expired entries are removed
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// GateConfig controls the query-time cache readiness wait.
type GateConfig struct {
	// PollInterval is how often the gate re-checks the cache while waiting
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// Budget is the total time the gate will wait before giving up
	Budget time.Duration `mapstructure:"budget" yaml:"budget"`
}

// AnalyzerConfig controls the external screen-analyzer connection.
type AnalyzerConfig struct {
	// Endpoint is the websocket URL of the screen analyzer service
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// RequestTimeout bounds a background analysis request
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// FreshTimeout bounds a forced-fresh synchronous capture
	FreshTimeout time.Duration `mapstructure:"fresh_timeout" yaml:"fresh_timeout"`
	// MaxFailures is the consecutive-failure count before degraded mode
	MaxFailures int `mapstructure:"max_failures" yaml:"max_failures"`
}

// SearchConfig controls ranked element search.
type SearchConfig struct {
	// DBPath is the path to the SQLite element index ("" = in-memory)
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	// TopK is the number of results surfaced to the answering model
	TopK int `mapstructure:"top_k" yaml:"top_k"`
	// MinScore filters out weak matches (0.0 - 1.0)
	MinScore float64 `mapstructure:"min_score" yaml:"min_score"`
	// RecentWindow restricts results to recently captured elements
	RecentWindow time.Duration `mapstructure:"recent_window" yaml:"recent_window"`
	// Timeout bounds a single search call
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// HistoryConfig controls the conversation history store.
type HistoryConfig struct {
	// DBPath is the path to the SQLite conversation database
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	// FetchLimit is the number of prior messages pulled into context
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`
	// FetchTimeout bounds the history fetch
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

// ValidatorConfig controls answer validation and retry.
type ValidatorConfig struct {
	// MaxRetries caps validation-driven retries per query
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// MinAnswerLength is the shortest answer not flagged as empty
	MinAnswerLength int `mapstructure:"min_answer_length" yaml:"min_answer_length"`
}

// WebSearchConfig controls the web search collaborator.
type WebSearchConfig struct {
	// Endpoint overrides the search API URL ("" = provider default)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// Limit is the number of results requested
	Limit int `mapstructure:"limit" yaml:"limit"`
	// Timeout bounds a search call
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LLMConfig controls the answering model backend.
type LLMConfig struct {
	// Endpoint is the Ollama server URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// Model is the chat model name
	Model string `mapstructure:"model" yaml:"model"`
	// Timeout bounds one generation call (cold starts load the model)
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServerConfig controls the UI feedback endpoint.
type ServerConfig struct {
	// Addr is the listen address for the event stream ("" disables it)
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is an optional path for persistent logs
	File string `mapstructure:"file" yaml:"file,omitempty"`
	// Quiet disables console output (for when a shell owns the terminal)
	Quiet bool `mapstructure:"quiet" yaml:"quiet"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			ActiveTTL:     30 * time.Second,
			BackgroundTTL: 2 * time.Minute,
			StaleCeiling:  5 * time.Minute,
			MaxWindows:    10,
			PollInterval:  500 * time.Millisecond,
			SweepInterval: 30 * time.Second,
		},
		Gate: GateConfig{
			PollInterval: 200 * time.Millisecond,
			Budget:       5 * time.Second,
		},
		Analyzer: AnalyzerConfig{
			Endpoint:       "ws://127.0.0.1:8791/analyze",
			RequestTimeout: 30 * time.Second,
			FreshTimeout:   60 * time.Second,
			MaxFailures:    5,
		},
		Search: SearchConfig{
			DBPath:       "~/.glance/elements.db",
			TopK:         8,
			MinScore:     0.3,
			RecentWindow: 10 * time.Minute,
			Timeout:      5 * time.Second,
		},
		History: HistoryConfig{
			DBPath:       "~/.glance/conversations.db",
			FetchLimit:   10,
			FetchTimeout: 2 * time.Second,
		},
		Validator: ValidatorConfig{
			MaxRetries:      1,
			MinAnswerLength: 12,
		},
		WebSearch: WebSearchConfig{
			Limit:   5,
			Timeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Endpoint: "http://127.0.0.1:11434",
			Model:    "llama3.2",
			Timeout:  120 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8790",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.Cache.ActiveTTL >= c.Cache.StaleCeiling {
		return fmt.Errorf("cache.active_ttl (%v) must be below cache.stale_ceiling (%v)", c.Cache.ActiveTTL, c.Cache.StaleCeiling)
	}
	if c.Cache.BackgroundTTL >= c.Cache.StaleCeiling {
		return fmt.Errorf("cache.background_ttl (%v) must be below cache.stale_ceiling (%v)", c.Cache.BackgroundTTL, c.Cache.StaleCeiling)
	}
	if c.Cache.MaxWindows <= 0 {
		return fmt.Errorf("cache.max_windows must be positive")
	}
	if c.Gate.PollInterval <= 0 || c.Gate.Budget <= 0 {
		return fmt.Errorf("gate poll_interval and budget must be positive")
	}
	if c.Validator.MaxRetries < 0 {
		return fmt.Errorf("validator.max_retries must not be negative")
	}
	return nil
}

// Load reads configuration from the default location (~/.glance/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	return LoadFromPath(filepath.Join(homeDir, ".glance", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it is created with
// default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example override: GLANCE_CACHE_ACTIVE_TTL=45s
	v.SetEnvPrefix("GLANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Search.DBPath = expandPath(cfg.Search.DBPath)
	cfg.History.DBPath = expandPath(cfg.History.DBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in zero values that would make the pipeline hang or
// thrash if taken literally.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Cache.PollInterval == 0 {
		c.Cache.PollInterval = def.Cache.PollInterval
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = def.Cache.SweepInterval
	}
	if c.Cache.ActiveTTL == 0 {
		c.Cache.ActiveTTL = def.Cache.ActiveTTL
	}
	if c.Cache.BackgroundTTL == 0 {
		c.Cache.BackgroundTTL = def.Cache.BackgroundTTL
	}
	if c.Cache.StaleCeiling == 0 {
		c.Cache.StaleCeiling = def.Cache.StaleCeiling
	}
	if c.Cache.MaxWindows == 0 {
		c.Cache.MaxWindows = def.Cache.MaxWindows
	}
	if c.Gate.PollInterval == 0 {
		c.Gate.PollInterval = def.Gate.PollInterval
	}
	if c.Gate.Budget == 0 {
		c.Gate.Budget = def.Gate.Budget
	}
	if c.Analyzer.RequestTimeout == 0 {
		c.Analyzer.RequestTimeout = def.Analyzer.RequestTimeout
	}
	if c.Analyzer.FreshTimeout == 0 {
		c.Analyzer.FreshTimeout = def.Analyzer.FreshTimeout
	}
	if c.Analyzer.MaxFailures == 0 {
		c.Analyzer.MaxFailures = def.Analyzer.MaxFailures
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = def.Search.TopK
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = def.Search.Timeout
	}
	if c.Search.RecentWindow == 0 {
		c.Search.RecentWindow = def.Search.RecentWindow
	}
	if c.History.FetchLimit == 0 {
		c.History.FetchLimit = def.History.FetchLimit
	}
	if c.History.FetchTimeout == 0 {
		c.History.FetchTimeout = def.History.FetchTimeout
	}
	if c.Validator.MinAnswerLength == 0 {
		c.Validator.MinAnswerLength = def.Validator.MinAnswerLength
	}
	if c.WebSearch.Limit == 0 {
		c.WebSearch.Limit = def.WebSearch.Limit
	}
	if c.WebSearch.Timeout == 0 {
		c.WebSearch.Timeout = def.WebSearch.Timeout
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = def.LLM.Endpoint
	}
	if c.LLM.Model == "" {
		c.LLM.Model = def.LLM.Model
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = def.LLM.Timeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// writeConfigFile serializes a config to YAML and writes it to disk.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := "# Glance configuration\n# Environment overrides use the GLANCE_ prefix, e.g. GLANCE_CACHE_ACTIVE_TTL=45s\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}

// expandPath expands a leading tilde to the user's home directory.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
