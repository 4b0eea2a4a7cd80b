// Package search implements the web-search capability via SerpAPI.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/parallaxlabs/deepresearch/internal/research"
)

const defaultBaseURL = "https://serpapi.com"

// Config holds the search provider settings.
type Config struct {
	APIKey     string
	Engine     string
	MaxResults int
	Timeout    time.Duration
	// BaseURL overrides the SerpAPI endpoint, used by tests.
	BaseURL string
	// RatePerSecond throttles outbound searches; zero disables throttling.
	RatePerSecond float64
}

// SerpAPIClient implements research.Searcher.
type SerpAPIClient struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSerpAPIClient builds a search client with bounded timeout and optional
// rate limiting.
func NewSerpAPIClient(cfg Config, logger *zap.Logger) *SerpAPIClient {
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &SerpAPIClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Search runs one query and returns up to MaxResults organic results. Zero
// results is a valid outcome, not an error.
func (c *SerpAPIClient) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	params := url.Values{}
	params.Set("engine", c.cfg.Engine)
	params.Set("q", query)
	params.Set("api_key", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d from search provider", resp.StatusCode)
	}

	var out struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]research.SearchResult, 0, len(out.OrganicResults))
	for _, r := range out.OrganicResults {
		if r.Title == "" || r.Link == "" {
			continue
		}
		results = append(results, research.SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
		if len(results) >= c.cfg.MaxResults {
			break
		}
	}

	c.logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("results", len(results)),
	)
	return results, nil
}
