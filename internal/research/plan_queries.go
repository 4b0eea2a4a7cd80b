package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// genericFallbackQueries keeps the pipeline moving when the planner output
// cannot be parsed at all.
var genericFallbackQueries = []string{
	"key entity name official site",
	"key concept timeline",
	"historical background",
}

// PlanQueries builds the retrieval query plan: 4-8 global queries plus 1-3
// targeted queries per claim. Time and timeline signals are folded into the
// global list, everything is de-duplicated, and per-claim lists are
// restricted to known claim ids. Claims the planner skipped get exactly two
// fallback queries each, generated concurrently and independently.
func (s *Stages) PlanQueries(ctx context.Context, st *State) (Patch, error) {
	claimsJSON, _ := json.Marshal(st.Claims)
	candidatesJSON, _ := json.Marshal(st.Candidates)
	entitiesJSON, _ := json.Marshal(st.Entities)
	expandedJSON, _ := json.Marshal(st.ExpandedEntities)

	prompt := fmt.Sprintf(`You are a research query planner.
Return JSON only in this format:
{
  "global_queries": ["..."],
  "claim_queries": {
    "c1": ["..."],
    "c2": ["..."]
  }
}

Task:
1) Generate 4-8 global queries for broad retrieval.
2) Generate 1-3 targeted queries per claim id.
3) Use exact phrase quotes where helpful.
4) Use multilingual queries when relevant.
5) Prefer source-friendly phrasing and add year anchors when present.

Question:
%s

Claims:
%s

Candidates:
%s

Entities:
%s

Expanded Entities:
%s
`, st.Question, claimsJSON, candidatesJSON, entitiesJSON, expandedJSON)

	var parsed struct {
		GlobalQueries []string            `json:"global_queries"`
		ClaimQueries  map[string][]string `json:"claim_queries"`
	}
	globalQueries := []string{}
	claimQueries := map[string][]string{}

	raw, err := s.gen.Complete(ctx, "Return ONLY valid JSON. No markdown.", prompt)
	if err == nil {
		// Some models return a bare array of queries instead of the object.
		var arr []string
		if arrErr := decodeArray(raw, &arr); arrErr == nil && !strings.HasPrefix(stripFences(raw), "{") {
			globalQueries = arr
		} else if objErr := decodeObject(raw, &parsed); objErr == nil {
			globalQueries = parsed.GlobalQueries
			claimQueries = parsed.ClaimQueries
		} else {
			err = objErr
		}
	}
	if err != nil {
		s.logger.Warn("plan_queries: planner output unusable, using generic queries", zap.Error(err))
		globalQueries = append([]string(nil), genericFallbackQueries...)
		claimQueries = map[string][]string{}
	}

	// Fold in accumulated time/timeline signals and year-anchored variants.
	globalQueries = append(globalQueries, st.TimeQueries...)
	globalQueries = append(globalQueries, st.TimelineQueries...)
	for _, y := range st.TimelineYears {
		if strings.TrimSpace(y) != "" {
			globalQueries = append(globalQueries, fmt.Sprintf("%s %s", y, st.Question))
		}
	}
	for _, tok := range strings.Fields(strings.ReplaceAll(st.Question, "–", "-")) {
		if len(tok) == 4 && isDigits(tok) {
			globalQueries = append(globalQueries, fmt.Sprintf("%s %s", tok, st.Question))
		}
	}
	globalQueries = dedupTrimmed(globalQueries)

	// Keep only known claim ids, each list de-duplicated.
	known := st.claimIDSet()
	normalized := make(map[string][]string, len(st.Claims))
	for cid, qs := range claimQueries {
		if _, ok := known[cid]; !ok {
			continue
		}
		normalized[cid] = dedupTrimmed(qs)
	}

	// Concurrently backfill claims the planner skipped. Each request is
	// isolated: one failing resolves to an empty list for that claim only.
	type fallbackResult struct {
		cid     string
		queries []string
	}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []fallbackResult
	)
	for _, c := range st.Claims {
		if c.ID == "" {
			continue
		}
		if _, ok := normalized[c.ID]; ok {
			continue
		}
		wg.Add(1)
		go func(c Claim) {
			defer wg.Done()
			qs := s.fallbackClaimQueries(ctx, st.Question, c)
			mu.Lock()
			results = append(results, fallbackResult{cid: c.ID, queries: qs})
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	for _, r := range results {
		normalized[r.cid] = r.queries
	}

	s.logger.Info("plan_queries: plan ready",
		zap.Int("global_queries", len(globalQueries)),
		zap.Int("claims_with_queries", len(normalized)),
	)

	return Patch{
		Queries:      globalQueries,
		ClaimQueries: normalized,
	}, nil
}

// fallbackClaimQueries asks the generator for exactly two verification
// queries for one claim. When the generator fails it synthesizes two
// deterministic queries from the claim itself rather than returning nothing.
func (s *Stages) fallbackClaimQueries(ctx context.Context, question string, c Claim) []string {
	prompt := fmt.Sprintf(
		"Generate exactly 2 concise web search queries in English for this claim.\n"+
			"Focus on factual verification and include key entities/time anchors if present.\n"+
			"Return JSON list only.\n"+
			"Question: %s\nClaim (%s): %s\n",
		question, c.ID, c.Description)

	var arr []string
	raw, err := s.gen.Complete(ctx, "Return ONLY a JSON list of 2 strings.", prompt)
	if err == nil {
		err = decodeArray(raw, &arr)
	}
	if err == nil {
		if out := dedupTrimmed(arr); len(out) > 0 {
			if len(out) > 2 {
				out = out[:2]
			}
			return out
		}
	}

	out := dedupTrimmed([]string{
		fmt.Sprintf("%s verification", c.Description),
		fmt.Sprintf("%s %s", question, c.Description),
	})
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}

// dedupTrimmed trims entries, drops empties, and de-duplicates preserving
// order.
func dedupTrimmed(xs []string) []string {
	out := make([]string, 0, len(xs))
	seen := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
