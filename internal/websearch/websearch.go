// Package websearch augments answer context with external search results
// when the screen alone cannot answer a query. The default implementation
// talks to the Tavily search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/normanking/glance/internal/logging"
	"github.com/normanking/glance/pkg/types"
)

// Searcher is the web-search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.WebResult, error)
}

// Func adapts a closure to the Searcher interface.
type Func func(ctx context.Context, query string, limit int) ([]types.WebResult, error)

// Search implements Searcher.
func (f Func) Search(ctx context.Context, query string, limit int) ([]types.WebResult, error) {
	return f(ctx, query, limit)
}

const defaultEndpoint = "https://api.tavily.com/search"

// ClientConfig configures the Tavily client.
type ClientConfig struct {
	// Endpoint overrides the Tavily API URL (tests point this at a fake).
	Endpoint string
	// APIKey authenticates requests; falls back to TAVILY_API_KEY.
	APIKey string
	// Timeout bounds each search call (default 10s).
	Timeout time.Duration
}

// Client searches the web through the Tavily API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *logging.Logger
}

// NewClient builds a Tavily search client.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		log:      logging.Global().WithComponent("WebSearch"),
	}
}

// Search runs one web search and returns up to limit results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]types.WebResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("web search not configured: missing API key")
	}
	if limit <= 0 {
		limit = 5
	}

	reqBody := map[string]any{
		"api_key":      c.apiKey,
		"query":        query,
		"search_depth": "basic",
		"max_results":  limit,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := make([]types.WebResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		snippet := r.Content
		if len(snippet) > 500 {
			snippet = snippet[:497] + "..."
		}
		results = append(results, types.WebResult{Title: r.Title, URL: r.URL, Snippet: snippet})
		if len(results) == limit {
			break
		}
	}

	c.log.Debug("web search returned %d results for %q", len(results), query)
	return results, nil
}
