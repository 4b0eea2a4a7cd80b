package research

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"
)

var yearPattern = regexp.MustCompile(`\b(1[6-9]\d{2}|20\d{2})\b`)

// extractYears returns the 4-digit year tokens of text, de-duplicated in
// first-seen order.
func extractYears(text string) []string {
	matches := yearPattern.FindAllString(text, -1)
	return dedupNonEmpty(matches)
}

// topYears ranks years by frequency (ties by year ascending) and returns the
// top k.
func topYears(years []string, k int) []string {
	freq := make(map[string]int)
	for _, y := range years {
		freq[y]++
	}
	ranked := make([]string, 0, len(freq))
	for y := range freq {
		ranked = append(ranked, y)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if freq[ranked[i]] != freq[ranked[j]] {
			return freq[ranked[i]] > freq[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// TimelineAlign collects year candidates from the fetched evidence and asks
// the generator for likely year anchors plus year-scoped queries. On failure
// the observed top years stand in for the model's judgment.
func (s *Stages) TimelineAlign(ctx context.Context, st *State) (Patch, error) {
	// Years are de-duplicated per document so frequency means "number of
	// documents mentioning the year", not raw occurrence count.
	var years []string
	for _, d := range st.Documents {
		years = append(years, extractYears(d.Content)...)
	}
	top := topYears(years, 3)

	prompt := fmt.Sprintf(
		"Given the question and claims, propose 1-3 likely year anchors.\n"+
			`Return JSON only: {"years": ["YYYY", ...], "queries": ["..."]}`+"\n"+
			"Question:\n%s\n\nClaims:\n%s\n\nObserved years from evidence: %v\n",
		st.Question, formatClaims(st.Claims), top)

	var parsed struct {
		Years   []string `json:"years"`
		Queries []string `json:"queries"`
	}
	raw, err := s.gen.Complete(ctx, jsonOnlySystem, prompt)
	if err == nil {
		err = decodeObject(raw, &parsed)
	}
	if err != nil {
		s.logger.Warn("timeline_align: using observed years", zap.Error(err))
		return Patch{TimelineYears: top}, nil
	}

	return Patch{
		TimelineYears:   dedupNonEmpty(parsed.Years),
		TimelineQueries: dedupNonEmpty(parsed.Queries),
	}, nil
}
