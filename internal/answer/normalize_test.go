package answer

import "testing"

func TestNormalizeStripsLegalSuffixes(t *testing.T) {
	cases := map[string]string{
		"Acme Inc.":             "acme",
		"Widgets, Ltd":          "widgets",
		"Deutsche Bahn AG":      "deutsche bahn",
		"The Walt Disney Co.":   "the walt disney",
		"plain answer":          "plain answer",
		"TradeMark™ Corp":  "trademark",
		"  spaced   out  LLC  ": "spaced out",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Acme Inc.", "café RENAULT S.p.A.", "東京 2020", "Sherlock Holmes & Dr. Watson"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeKeepsNonLatinText(t *testing.T) {
	if got := Normalize("李白"); got == "" {
		t.Fatal("non-Latin answer normalized to empty string")
	}
}

func TestEquivalent(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Acme Inc.", "acme", true},
		{"The Beatles", "Beatles", true},
		{"New York City", "New York", true},
		{"George Washington", "Abraham Lincoln", false},
		{"", "", false},
		{"United States of America", "United States", true},
	}
	for _, tc := range cases {
		if got := Equivalent(tc.a, tc.b); got != tc.want {
			t.Errorf("Equivalent(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestExtractFinalAnswer(t *testing.T) {
	raw := "Final Answer: Marie Curie\nEvidence:\n- [S1] Nobel archives\nSources:\n- https://example.com"
	if got := ExtractFinalAnswer(raw); got != "Marie Curie" {
		t.Fatalf("ExtractFinalAnswer = %q", got)
	}
	if got := ExtractFinalAnswer("no marker here"); got != "no marker here" {
		t.Fatalf("fallback should return the input, got %q", got)
	}
}

func TestCanonicalizePrefersCandidateForm(t *testing.T) {
	got := Canonicalize("acme", []string{"Acme Inc.", "Globex Corporation"})
	if got != "Acme Inc." {
		t.Fatalf("Canonicalize = %q, want %q", got, "Acme Inc.")
	}
}

func TestCanonicalizeLeavesUnknownAlone(t *testing.T) {
	for _, raw := range []string{"Unknown", "unknown", "N/A", "?", ""} {
		if got := Canonicalize(raw, []string{"Acme Inc."}); got != raw {
			t.Errorf("Canonicalize(%q) = %q, want unchanged", raw, got)
		}
	}
}

func TestCanonicalizeNoMatchingCandidate(t *testing.T) {
	got := Canonicalize("Jupiter", []string{"Acme Inc.", "Globex Corporation"})
	if got != "Jupiter" {
		t.Fatalf("Canonicalize without a match should return the raw answer, got %q", got)
	}
}
