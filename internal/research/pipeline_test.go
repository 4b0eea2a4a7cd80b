package research

import (
	"context"
	"strings"
	"sync"
	"testing"
)

// recordingSink collects published events per stage.
type recordingSink struct {
	mu     sync.Mutex
	stages []string
}

func (r *recordingSink) Publish(sessionID, stage, message string) {
	r.mu.Lock()
	r.stages = append(r.stages, stage)
	r.mu.Unlock()
}

// twoClaimGen scripts a full run: one claim stays unsupported after the
// first retrieval pass, forcing exactly one coverage retry, and the second
// pass verifies everything.
func twoClaimGen() *scriptedGen {
	return newScriptedGen().
		on("information extractor",
			`[{"id":"c1","description":"publisher founded in 1952","must":true},
			  {"id":"c2","description":"publisher relaunched its imprint in 2008","must":true}]`).
		on("Extract key entities",
			`{"entities":["Acme Press"],"expanded":["Acme Publishing House"]}`).
		on("time/sequence anchors",
			`{"time_anchors":["after the relaunch"],"time_queries":["acme press relaunch press release"]}`).
		on("candidate answers",
			`["Acme Press", "Globex Books"]`).
		on("research query planner",
			`{"global_queries":["acme press history"],
			  "claim_queries":{"c1":["acme press 1952 founding"],"c2":["acme press 2008 imprint relaunch"]}}`).
		on("propose 1-3 likely year anchors",
			`{"years":["1952","2008"],"queries":["acme press 1952 archive"]}`).
		on("Verify each claim",
			`{"items":[{"id":"c1","supported":true,"sources":["S1"]}],"missing_claims":["c2"]}`,
			`{"items":[{"id":"c1","supported":true,"sources":["S1"]},{"id":"c2","supported":true,"sources":["S2"]}],"missing_claims":[]}`).
		on("Check if the evidence likely covers",
			`{"missing_claims":["c2"],"queries":["acme press imprint 2008 announcement"]}`).
		on("score each candidate",
			`{"scores":[{"candidate":"Acme Press","score":5,"reason":"matches evidence"}],"best":"Acme Press"}`).
		on("deep research assistant",
			"Final Answer: acme press\nEvidence:\n- Founded in 1952. [S1]\n- Imprint relaunched in 2008. [S2]\nSources:\nS1: https://history.example.org/acme\nS2: https://news.example.org/relaunch")
}

func pipelineFixture(search Searcher, fetch Fetcher, gen Generator, sink EventSink) *Pipeline {
	cfg := DefaultConfig()
	stages := newTestStages(gen, search, fetch, cfg)
	return NewPipeline(stages, cfg, nil, sink)
}

func TestPipelineEndToEndWithOneRetry(t *testing.T) {
	search := &mapSearcher{results: map[string][]SearchResult{
		"acme press history":                   {{Title: "history", URL: "https://history.example.org/acme"}},
		"acme press 1952 founding":             {{Title: "history", URL: "https://history.example.org/acme"}},
		"acme press imprint 2008 announcement": {{Title: "news", URL: "https://news.example.org/relaunch"}},
	}}
	fetch := &mapFetcher{docs: map[string]Document{
		"https://history.example.org/acme": {
			URL: "https://history.example.org/acme", Title: "Acme Press history",
			Content: "Acme Press was founded in 1952.",
		},
		"https://news.example.org/relaunch": {
			URL: "https://news.example.org/relaunch", Title: "Imprint relaunch",
			Content: "In 2008 Acme Press relaunched its imprint.",
		},
	}}
	sink := &recordingSink{}
	p := pipelineFixture(search, fetch, twoClaimGen(), sink)

	st, err := p.Run(context.Background(), &State{SessionID: "s1", Question: "Which publisher founded in 1952 relaunched its imprint in 2008?"})
	if err != nil {
		t.Fatal(err)
	}

	if st.RetryCount != 1 {
		t.Fatalf("RetryCount = %d, want exactly one coverage retry", st.RetryCount)
	}
	if st.FinalAnswerCanonical != "Acme Press" {
		t.Fatalf("canonical = %q, want the candidate form", st.FinalAnswerCanonical)
	}
	if !strings.HasPrefix(st.FinalAnswer, "Final Answer: Acme Press") {
		t.Fatalf("final answer first line not canonicalized: %q", st.FinalAnswer)
	}
	if !strings.Contains(st.FinalAnswer, "[S1]") {
		t.Fatalf("final answer lost citations: %q", st.FinalAnswer)
	}
	if len(st.MissingClaims) != 0 {
		t.Fatalf("missing claims after full coverage: %v", st.MissingClaims)
	}
	if st.SelectedCandidate != "Acme Press" {
		t.Fatalf("selected candidate = %q", st.SelectedCandidate)
	}
	// The retry's targeted query must have entered the monotone query list.
	if !contains(st.Queries, "acme press imprint 2008 announcement") {
		t.Fatalf("targeted retry query not merged: %v", st.Queries)
	}

	// Two retrieval passes, one scoring pass, one finalize.
	if got := count(sink.stages, "retrieve"); got != 2 {
		t.Fatalf("retrieve ran %d times, want 2", got)
	}
	if got := count(sink.stages, "finalize"); got != 1 {
		t.Fatalf("finalize ran %d times, want 1", got)
	}
}

func TestPipelineLoopIsBounded(t *testing.T) {
	// Generation always fails and retrieval finds nothing; every coverage
	// check wants to retry. The budget must still terminate the run.
	sink := &recordingSink{}
	p := pipelineFixture(&mapSearcher{}, &mapFetcher{}, failingGen{}, sink)

	st, err := p.Run(context.Background(), &State{SessionID: "s2", Question: "unanswerable"})
	if err != nil {
		t.Fatal(err)
	}
	if st.RetryCount != 1 {
		t.Fatalf("RetryCount = %d, want the budget of 1", st.RetryCount)
	}
	if got := count(sink.stages, "retrieve"); got != 2 {
		t.Fatalf("retrieve ran %d times, want 2", got)
	}
	if st.FinalAnswerCanonical != "Unknown" {
		t.Fatalf("canonical = %q, want Unknown", st.FinalAnswerCanonical)
	}
	if !strings.Contains(st.FinalAnswer, "No sources were retrieved") {
		t.Fatalf("no-evidence answer malformed: %q", st.FinalAnswer)
	}
}

func TestPipelineRejectsClaimIDCollision(t *testing.T) {
	gen := newScriptedGen().
		on("information extractor", `[{"id":"c1","description":"a","must":true},{"id":"c1","description":"b","must":true}]`).
		on("Extract key entities", `{"entities":[],"expanded":[]}`).
		on("time/sequence anchors", `{"time_anchors":[],"time_queries":[]}`).
		on("candidate answers", `[]`).
		on("research query planner", `{"global_queries":["q"],"claim_queries":{}}`).
		on("Generate exactly 2 concise web search queries", `["a","b"]`)
	p := pipelineFixture(&mapSearcher{}, &mapFetcher{}, gen, nil)

	_, err := p.Run(context.Background(), &State{SessionID: "s3", Question: "q"})
	if err == nil {
		t.Fatal("claim id collision must fail the run")
	}
}

func TestPipelineQuestionFromTranscript(t *testing.T) {
	p := pipelineFixture(&mapSearcher{}, &mapFetcher{}, failingGen{}, nil)
	st, err := p.Run(context.Background(), &State{
		SessionID: "s4",
		Messages: []Message{
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "Who founded Acme?"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if st.Question != "Who founded Acme?" {
		t.Fatalf("question = %q", st.Question)
	}
	// The catch-all fallback claim keeps the run alive.
	if len(st.Claims) != 1 || st.Claims[0].ID != "c1" {
		t.Fatalf("fallback claim missing: %+v", st.Claims)
	}
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func count(xs []string, want string) int {
	n := 0
	for _, x := range xs {
		if x == want {
			n++
		}
	}
	return n
}
