package research

import "context"

// Generator is the language-generation capability. Implementations may fail
// (timeouts, malformed output); every call site in this package tolerates
// failure with a deterministic or empty fallback.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Searcher is the web-search capability. Zero results is a valid outcome.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Fetcher retrieves and extracts the text of a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}
