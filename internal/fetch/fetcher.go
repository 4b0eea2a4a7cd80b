// Package fetch implements the page-fetch capability. Extraction is kept
// deliberately minimal: title plus tag-stripped body text with a size cap.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/parallaxlabs/deepresearch/internal/research"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds fetcher limits.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	// MaxChars caps extracted text; longer content is truncated with an
	// explicit marker.
	MaxChars int
	// RatePerSecond throttles outbound fetches; zero disables throttling.
	RatePerSecond float64
}

// HTTPFetcher implements research.Fetcher.
type HTTPFetcher struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPFetcher builds a fetcher with bounded timeout and byte cap.
func NewHTTPFetcher(cfg Config, logger *zap.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 2 << 20 // 2 MiB
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 12000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 2)
	}
	return &HTTPFetcher{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}
}

var (
	titlePattern  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	dropPattern   = regexp.MustCompile(`(?is)<(script|style|noscript|svg|header|footer|nav)[^>]*>.*?</(script|style|noscript|svg|header|footer|nav)>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRuns     = regexp.MustCompile(`[ \t]{2,}`)
	newlineRuns   = regexp.MustCompile(`\n{3,}`)
	trailingLines = regexp.MustCompile(`\s+\n`)
)

// Fetch downloads a URL and returns its extracted text as a Document.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (research.Document, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return research.Document{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return research.Document{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.http.Do(req)
	if err != nil {
		return research.Document{}, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return research.Document{}, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "pdf") || strings.HasSuffix(strings.ToLower(rawURL), ".pdf") {
		// PDF text extraction is out of scope; surface the document with a
		// marker so downstream stages can still cite the URL.
		return research.Document{URL: rawURL, Title: "PDF Document", Content: "[PDF content not extracted]"}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes))
	if err != nil {
		return research.Document{}, fmt.Errorf("failed to read body: %w", err)
	}

	title, text := extractText(string(body))
	if len(text) > f.cfg.MaxChars {
		text = text[:f.cfg.MaxChars] + "\n\n[TRUNCATED]"
	}

	f.logger.Debug("fetched document",
		zap.String("url", rawURL),
		zap.Int("chars", len(text)),
	)
	return research.Document{URL: rawURL, Title: title, Content: text}, nil
}

// extractText pulls the title and a tag-stripped body from HTML.
func extractText(html string) (string, string) {
	title := ""
	if m := titlePattern.FindStringSubmatch(html); m != nil {
		title = strings.TrimSpace(htmlUnescape(tagPattern.ReplaceAllString(m[1], " ")))
	}

	text := dropPattern.ReplaceAllString(html, " ")
	text = tagPattern.ReplaceAllString(text, "\n")
	text = htmlUnescape(text)
	text = trailingLines.ReplaceAllString(text, "\n")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return title, strings.TrimSpace(text)
}

// htmlUnescape covers the entities that matter for extracted prose.
func htmlUnescape(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return r.Replace(s)
}
