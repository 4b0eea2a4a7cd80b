package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// scriptedGen routes generation calls on prompt markers. Each marker maps to
// a list of responses consumed in order; the last response repeats.
type scriptedGen struct {
	mu      sync.Mutex
	scripts map[string][]string
	calls   map[string]int
}

func newScriptedGen() *scriptedGen {
	return &scriptedGen{
		scripts: make(map[string][]string),
		calls:   make(map[string]int),
	}
}

func (g *scriptedGen) on(marker string, responses ...string) *scriptedGen {
	g.scripts[marker] = responses
	return g
}

func (g *scriptedGen) Complete(ctx context.Context, system, user string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for marker, responses := range g.scripts {
		if !strings.Contains(user, marker) {
			continue
		}
		i := g.calls[marker]
		g.calls[marker]++
		if i >= len(responses) {
			i = len(responses) - 1
		}
		return responses[i], nil
	}
	return "", fmt.Errorf("no scripted response for prompt: %s", truncateStr(user, 60))
}

// failingGen always errors, exercising every deterministic fallback.
type failingGen struct{}

func (failingGen) Complete(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("generation unavailable")
}

// mapSearcher returns canned results per query; unknown queries return
// nothing. failAll simulates a search outage.
type mapSearcher struct {
	results map[string][]SearchResult
	failAll bool

	mu      sync.Mutex
	queries []string
}

func (s *mapSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("search backend down")
	}
	return s.results[query], nil
}

// mapFetcher serves documents by URL; URLs absent from the map fail.
type mapFetcher struct {
	docs map[string]Document
}

func (f *mapFetcher) Fetch(ctx context.Context, url string) (Document, error) {
	doc, ok := f.docs[url]
	if !ok {
		return Document{}, fmt.Errorf("fetch failed: %s", url)
	}
	return doc, nil
}

// firehoseSearcher returns n distinct results for every query.
type firehoseSearcher struct {
	n int

	mu    sync.Mutex
	calls int
}

func (s *firehoseSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	out := make([]SearchResult, 0, s.n)
	for i := 0; i < s.n; i++ {
		out = append(out, SearchResult{
			Title: fmt.Sprintf("result %d-%d", call, i),
			URL:   fmt.Sprintf("https://example.org/%d/%d", call, i),
		})
	}
	return out, nil
}

// echoFetcher succeeds for every URL with minimal content.
type echoFetcher struct{}

func (echoFetcher) Fetch(ctx context.Context, url string) (Document, error) {
	return Document{URL: url, Title: url, Content: "content of " + url}, nil
}

func newTestStages(gen Generator, search Searcher, fetch Fetcher, cfg Config) *Stages {
	return NewStages(gen, search, fetch, cfg, zap.NewNop())
}
