package research

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestPlanQueriesParsesPlannerObject(t *testing.T) {
	gen := newScriptedGen().
		on("research query planner", `{
			"global_queries": ["acme corporation history", "acme founding"],
			"claim_queries": {
				"c1": ["acme founding year", "acme founding year"],
				"cx": ["ignored: unknown claim"]
			}
		}`)
	s := newTestStages(gen, &mapSearcher{}, &mapFetcher{}, DefaultConfig())

	st := &State{
		Question: "When was Acme founded?",
		Claims:   []Claim{{ID: "c1", Description: "founding year"}},
	}
	patch, err := s.PlanQueries(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if len(patch.Queries) != 2 {
		t.Fatalf("global queries = %v", patch.Queries)
	}
	if _, ok := patch.ClaimQueries["cx"]; ok {
		t.Fatal("unknown claim id survived normalization")
	}
	if got := patch.ClaimQueries["c1"]; !reflect.DeepEqual(got, []string{"acme founding year"}) {
		t.Fatalf("claim queries not de-duplicated: %v", got)
	}
}

func TestPlanQueriesFoldsTimeSignals(t *testing.T) {
	gen := newScriptedGen().
		on("research query planner", `{"global_queries": ["base query"], "claim_queries": {}}`).
		on("Generate exactly 2 concise web search queries", `["fallback one", "fallback two"]`)
	s := newTestStages(gen, &mapSearcher{}, &mapFetcher{}, DefaultConfig())

	st := &State{
		Question:        "What changed after the 2004 relaunch?",
		Claims:          []Claim{{ID: "c1", Description: "relaunch details"}},
		TimeQueries:     []string{"relaunch press release"},
		TimelineQueries: []string{"relaunch schedule archive"},
		TimelineYears:   []string{"2008"},
	}
	patch, err := s.PlanQueries(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(patch.Queries, "|")
	for _, want := range []string{
		"base query",
		"relaunch press release",
		"relaunch schedule archive",
		"2008 What changed after the 2004 relaunch?",
		"2004 What changed after the 2004 relaunch?",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("global queries missing %q: %v", want, patch.Queries)
		}
	}
}

func TestPlanQueriesGenericFallbackOnUnusableOutput(t *testing.T) {
	s := newTestStages(failingGen{}, &mapSearcher{}, &mapFetcher{}, DefaultConfig())
	st := &State{
		Question: "question",
		Claims:   []Claim{{ID: "c1", Description: "first claim"}},
	}
	patch, err := s.PlanQueries(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(patch.Queries, "|")
	for _, want := range genericFallbackQueries {
		if !strings.Contains(joined, want) {
			t.Fatalf("generic fallback missing %q: %v", want, patch.Queries)
		}
	}
	// Claims the planner skipped get exactly two deterministic queries.
	got := patch.ClaimQueries["c1"]
	want := []string{"first claim verification", "question first claim"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("claim fallback = %v, want %v", got, want)
	}
}

func TestPlanQueriesBackfillsEveryClaimConcurrently(t *testing.T) {
	gen := newScriptedGen().
		on("research query planner", `{"global_queries": ["g"], "claim_queries": {}}`).
		on("Generate exactly 2 concise web search queries", `["qa", "qb"]`)
	s := newTestStages(gen, &mapSearcher{}, &mapFetcher{}, DefaultConfig())

	claims := make([]Claim, 0, 8)
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8"} {
		claims = append(claims, Claim{ID: id, Description: "desc " + id})
	}
	patch, err := s.PlanQueries(context.Background(), &State{Question: "q", Claims: claims})
	if err != nil {
		t.Fatal(err)
	}
	if len(patch.ClaimQueries) != len(claims) {
		t.Fatalf("claims with queries = %d, want %d", len(patch.ClaimQueries), len(claims))
	}
	for id, qs := range patch.ClaimQueries {
		if len(qs) != 2 {
			t.Fatalf("claim %s got %d queries, want 2", id, len(qs))
		}
	}
}

func TestPlanQueriesToleratesBareArray(t *testing.T) {
	gen := newScriptedGen().
		on("research query planner", `["only query one", "only query two"]`).
		on("Generate exactly 2 concise web search queries", `["f1", "f2"]`)
	s := newTestStages(gen, &mapSearcher{}, &mapFetcher{}, DefaultConfig())

	patch, err := s.PlanQueries(context.Background(), &State{
		Question: "q",
		Claims:   []Claim{{ID: "c1", Description: "d"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(patch.Queries, []string{"only query one", "only query two"}) {
		t.Fatalf("Queries = %v", patch.Queries)
	}
}
