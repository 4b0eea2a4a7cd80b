package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/parallaxlabs/deepresearch/internal/metrics"
)

// plannedQuery pairs a query with the claim it targets; claimID is empty for
// global queries.
type plannedQuery struct {
	claimID string
	query   string
}

// buildQueryPlan orders every global query before any per-claim query,
// preserving insertion order within each group, so broad anchor queries run
// before the document budget can interrupt the scan.
func buildQueryPlan(st *State) []plannedQuery {
	plan := make([]plannedQuery, 0, len(st.Queries))
	for _, q := range st.Queries {
		if strings.TrimSpace(q) != "" {
			plan = append(plan, plannedQuery{query: strings.TrimSpace(q)})
		}
	}
	for _, c := range st.Claims {
		for _, q := range st.ClaimQueries[c.ID] {
			if strings.TrimSpace(q) != "" {
				plan = append(plan, plannedQuery{claimID: c.ID, query: strings.TrimSpace(q)})
			}
		}
	}
	return plan
}

// hostBlocked reports whether the URL's hostname matches the blocklist
// (case-insensitive substring).
func (s *Stages) hostBlocked(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, part := range s.cfg.BlockedHosts {
		if strings.Contains(host, strings.ToLower(part)) {
			return true
		}
	}
	s.blockMu.RLock()
	extra := s.extraBlocked
	s.blockMu.RUnlock()
	for _, part := range extra {
		if strings.Contains(host, strings.ToLower(part)) {
			return true
		}
	}
	return false
}

// Retrieve executes the query plan against the search and fetch
// capabilities. The pass replaces the prior pass's documents wholesale. At
// most MaxDocuments documents are accepted per pass and at most
// PerQueryResults results are consumed per query; per-query search failures
// and per-URL fetch failures are swallowed.
func (s *Stages) Retrieve(ctx context.Context, st *State) (Patch, error) {
	var documents []Document
	seen := make(map[string]struct{})
	claimHits := make(map[string]int)

	plan := buildQueryPlan(st)
	metrics.RetrievalPasses.Inc()

planLoop:
	for _, pq := range plan {
		if len(documents) >= s.cfg.MaxDocuments {
			break
		}

		results, err := s.search.Search(ctx, pq.query)
		if err != nil {
			metrics.SearchErrors.Inc()
			s.logger.Debug("retrieve: search failed, skipping query",
				zap.String("query", truncateStr(pq.query, 80)),
				zap.Error(err),
			)
			continue
		}
		if len(results) > s.cfg.PerQueryResults {
			results = results[:s.cfg.PerQueryResults]
		}

		for _, r := range results {
			if len(documents) >= s.cfg.MaxDocuments {
				break planLoop
			}
			if _, dup := seen[r.URL]; dup {
				continue
			}
			if s.hostBlocked(r.URL) {
				continue
			}
			// Mark seen before fetching so a failed URL is never retried
			// within the pass.
			seen[r.URL] = struct{}{}

			doc, err := s.fetch.Fetch(ctx, r.URL)
			if err != nil {
				metrics.FetchErrors.Inc()
				s.logger.Debug("retrieve: fetch failed, dropping result",
					zap.String("url", r.URL),
					zap.Error(err),
				)
				continue
			}
			documents = append(documents, doc)
			metrics.DocumentsFetched.Inc()
			if pq.claimID != "" {
				claimHits[pq.claimID]++
			}
		}
	}

	status := fmt.Sprintf("Fetched %d documents", len(documents))
	if len(claimHits) > 0 {
		status += fmt.Sprintf("; claim_hits=%v", claimHits)
	}
	s.logger.Info("retrieve: pass complete",
		zap.Int("documents", len(documents)),
		zap.Int("queries", len(plan)),
	)

	return Patch{
		Documents:        documents,
		ReplaceDocuments: true,
		Messages:         []Message{progressMsg("%s", status)},
	}, nil
}
