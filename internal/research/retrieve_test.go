package research

import (
	"context"
	"strings"
	"testing"
)

func TestRetrieveSkipsBlockedHosts(t *testing.T) {
	search := &mapSearcher{results: map[string][]SearchResult{
		"acme history": {
			{Title: "thread", URL: "https://www.reddit.com/r/acme/123"},
			{Title: "profile", URL: "https://x.com/acme"},
			{Title: "archive", URL: "https://archive.example.org/acme"},
		},
	}}
	fetch := &mapFetcher{docs: map[string]Document{
		"https://archive.example.org/acme": {URL: "https://archive.example.org/acme", Content: "acme history"},
	}}
	s := newTestStages(failingGen{}, search, fetch, DefaultConfig())

	st := &State{Queries: []string{"acme history"}}
	patch, err := s.Retrieve(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if len(patch.Documents) != 1 || patch.Documents[0].URL != "https://archive.example.org/acme" {
		t.Fatalf("documents = %+v", patch.Documents)
	}
}

func TestRetrieveRuntimeBlocklistExtension(t *testing.T) {
	search := &mapSearcher{results: map[string][]SearchResult{
		"q": {{URL: "https://spam.example.net/page"}},
	}}
	s := newTestStages(failingGen{}, search, echoFetcher{}, DefaultConfig())
	s.SetExtraBlockedHosts([]string{"spam.example.net"})

	patch, err := s.Retrieve(context.Background(), &State{Queries: []string{"q"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(patch.Documents) != 0 {
		t.Fatalf("runtime-blocked host fetched: %+v", patch.Documents)
	}
}

func TestRetrieveHonorsDocumentAndPerQueryBudgets(t *testing.T) {
	search := &firehoseSearcher{n: 100}
	s := newTestStages(failingGen{}, search, echoFetcher{}, DefaultConfig())

	st := &State{
		Queries: []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8", "q9", "q10"},
	}
	patch, err := s.Retrieve(context.Background(), st)
	if err != nil {
		t.Fatal(err)
	}
	if len(patch.Documents) != 20 {
		t.Fatalf("documents = %d, want the 20-document budget", len(patch.Documents))
	}
	// 3 accepted per query means at least 7 queries ran before the cap.
	if search.calls < 7 {
		t.Fatalf("only %d queries ran before the budget", search.calls)
	}
	if !patch.ReplaceDocuments {
		t.Fatal("retrieval must replace documents wholesale")
	}
}

func TestRetrieveDedupsURLsAcrossQueries(t *testing.T) {
	shared := SearchResult{Title: "same", URL: "https://example.org/shared"}
	search := &mapSearcher{results: map[string][]SearchResult{
		"q1": {shared},
		"q2": {shared},
	}}
	s := newTestStages(failingGen{}, search, echoFetcher{}, DefaultConfig())

	patch, err := s.Retrieve(context.Background(), &State{Queries: []string{"q1", "q2"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(patch.Documents) != 1 {
		t.Fatalf("duplicate URL fetched twice: %+v", patch.Documents)
	}
}

func TestRetrieveSwallowsSearchAndFetchFailures(t *testing.T) {
	s := newTestStages(failingGen{}, &mapSearcher{failAll: true}, &mapFetcher{}, DefaultConfig())
	patch, err := s.Retrieve(context.Background(), &State{Queries: []string{"q1", "q2"}})
	if err != nil {
		t.Fatalf("search outage must not fail the stage: %v", err)
	}
	if len(patch.Documents) != 0 {
		t.Fatalf("documents = %+v", patch.Documents)
	}

	// Fetch failures drop the result but keep the pass going.
	search := &mapSearcher{results: map[string][]SearchResult{
		"q": {
			{URL: "https://broken.example.org/a"},
			{URL: "https://ok.example.org/b"},
		},
	}}
	fetch := &mapFetcher{docs: map[string]Document{
		"https://ok.example.org/b": {URL: "https://ok.example.org/b", Content: "x"},
	}}
	s = newTestStages(failingGen{}, search, fetch, DefaultConfig())
	patch, err = s.Retrieve(context.Background(), &State{Queries: []string{"q"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(patch.Documents) != 1 || patch.Documents[0].URL != "https://ok.example.org/b" {
		t.Fatalf("documents = %+v", patch.Documents)
	}
}

func TestBuildQueryPlanGlobalFirst(t *testing.T) {
	st := &State{
		Claims:  []Claim{{ID: "c1"}, {ID: "c2"}},
		Queries: []string{"g1", "g2"},
		ClaimQueries: map[string][]string{
			"c2": {"c2q1"},
			"c1": {"c1q1", "c1q2"},
		},
	}
	plan := buildQueryPlan(st)
	var order []string
	for _, pq := range plan {
		order = append(order, pq.query)
	}
	want := "g1 g2 c1q1 c1q2 c2q1"
	if got := strings.Join(order, " "); got != want {
		t.Fatalf("plan order = %q, want %q", got, want)
	}
	if plan[0].claimID != "" || plan[2].claimID != "c1" {
		t.Fatalf("claim attribution wrong: %+v", plan)
	}
}
