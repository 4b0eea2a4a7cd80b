package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DecisionKind labels the coverage controller's routing choice.
type DecisionKind int

const (
	// DecideScore escalates to candidate scoring (the non-loop path).
	DecideScore DecisionKind = iota
	// DecideRetry loops back to retrieval with the merged query list.
	DecideRetry
	// DecideFinalize skips scoring and goes straight to the final answer.
	DecideFinalize
)

// Decision is the typed routing result of the coverage check, consumed by
// the pipeline's switch. Queries carries the novel targeted queries merged
// into state on a retry.
type Decision struct {
	Kind    DecisionKind
	Queries []string
}

// Action maps the decision onto the observability enum recorded in state.
func (d Decision) Action() Action {
	switch d.Kind {
	case DecideRetry:
		return ActionRetrieve
	case DecideFinalize:
		return ActionFinalize
	default:
		return ActionScoreCandidates
	}
}

// evidenceYearLimit caps year-anchored retry queries per coverage check.
const evidenceYearLimit = 3

// CoverageCheck decides whether the evidence suffices or retrieval must run
// again. Priority order, first match wins:
//
//  1. retry budget exhausted          -> score (the loop's sole hard stop)
//  2. no documents at all             -> retry with the same plan
//  3. nothing missing                 -> score
//  4. propose targeted queries for the missing claims; with none to add,
//     score rather than loop unproductively.
//
// The retry counter only ever increments and is never reset within a
// session.
func (s *Stages) CoverageCheck(ctx context.Context, st *State) (Decision, Patch) {
	if st.RetryCount >= s.cfg.MaxRetries {
		s.logger.Info("coverage_check: retry budget exhausted",
			zap.Int("retry_count", st.RetryCount),
			zap.Int("max_retries", s.cfg.MaxRetries),
		)
		d := Decision{Kind: DecideScore}
		return d, Patch{NextAction: d.Action()}
	}

	if len(st.Documents) == 0 {
		d := Decision{Kind: DecideRetry}
		return d, Patch{
			NextAction: d.Action(),
			RetryDelta: 1,
			Messages:   []Message{progressMsg("[coverage_check] No documents; retrying retrieval.")},
		}
	}

	if len(st.MissingClaims) == 0 {
		d := Decision{Kind: DecideScore}
		return d, Patch{NextAction: d.Action()}
	}

	newQueries := s.proposeGapQueries(ctx, st)

	if len(newQueries) == 0 {
		desc := make(map[string]string, len(st.Claims))
		for _, c := range st.Claims {
			desc[c.ID] = c.Description
		}
		for _, cid := range st.MissingClaims {
			if d := desc[cid]; d != "" {
				newQueries = append(newQueries, truncateStr(d, 120))
			}
		}
	}

	// Year anchors observed in the evidence sharpen retries for the
	// still-missing claims.
	var evidenceYears []string
	for _, d := range st.Documents {
		evidenceYears = append(evidenceYears, extractEvidenceYears(d.Content)...)
	}
	evidenceYears = dedupNonEmpty(evidenceYears)
	if len(evidenceYears) > evidenceYearLimit {
		evidenceYears = evidenceYears[:evidenceYearLimit]
	}
	missingJoined := strings.Join(st.MissingClaims, " ")
	for _, y := range evidenceYears {
		newQueries = append(newQueries, fmt.Sprintf("%s %s", y, missingJoined))
	}

	if len(newQueries) == 0 {
		d := Decision{Kind: DecideScore}
		return d, Patch{NextAction: d.Action()}
	}

	// Only strings not already planned actually grow the query list.
	existing := make(map[string]struct{}, len(st.Queries))
	for _, q := range st.Queries {
		existing[q] = struct{}{}
	}
	novel := make([]string, 0, len(newQueries))
	for _, q := range dedupTrimmed(newQueries) {
		if _, ok := existing[q]; !ok {
			novel = append(novel, q)
		}
	}

	d := Decision{Kind: DecideRetry, Queries: novel}
	return d, Patch{
		NextAction: d.Action(),
		RetryDelta: 1,
		Queries:    novel,
		Messages:   []Message{progressMsg("[coverage_check] Added %d targeted queries.", len(novel))},
	}
}

// proposeGapQueries asks the generator for 1-3 queries targeting the missing
// claims; a parse failure yields none and the deterministic fallbacks take
// over.
func (s *Stages) proposeGapQueries(ctx context.Context, st *State) []string {
	prompt := fmt.Sprintf(
		"You are a careful research assistant.\n"+
			"Task: Check if the evidence likely covers the claims. If not, propose 1-3 targeted queries.\n"+
			"Return JSON only:\n"+
			"{\n"+
			`  "missing_claims": ["c1", "c2"],`+"\n"+
			`  "queries": ["query1", "query2"]`+"\n"+
			"}\n\n"+
			"Claims:\n%s\n\nMissing Claims (from verification):\n%v\n\nEvidence:\n%s\n",
		formatClaims(st.Claims), st.MissingClaims, formatEvidence(st.Documents, s.cfg.VerifyEvidenceChars))

	var parsed struct {
		MissingClaims []string `json:"missing_claims"`
		Queries       []string `json:"queries"`
	}
	raw, err := s.gen.Complete(ctx, jsonOnlySystem, prompt)
	if err == nil {
		err = decodeObject(raw, &parsed)
	}
	if err != nil {
		s.logger.Warn("coverage_check: gap query proposal unusable", zap.Error(err))
		return nil
	}
	return dedupTrimmed(parsed.Queries)
}

// extractEvidenceYears finds standalone 4-digit runs in [1500, 2099].
// Splitting on non-digit runes keeps "1952," and range forms like
// "1952-2008" extractable.
func extractEvidenceYears(text string) []string {
	var years []string
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		if len(tok) != 4 {
			continue
		}
		if tok >= "1500" && tok <= "2099" {
			years = append(years, tok)
		}
	}
	return dedupNonEmpty(years)
}
