package research

// Patch is the partial state update a stage returns. Merge semantics are
// fixed per field so that Apply is total and auditable:
//
//   - replace:      Question, Claims, Entities, ExpandedEntities,
//     TimelineYears*, ClaimQueries, Candidates, NextAction
//   - append:       TimeAnchors, TimeQueries, TimelineQueries, Messages
//   - append-dedup: Queries (monotone, exact-string)
//   - wholesale:    Documents (only when ReplaceDocuments is set; a retrieval
//     pass replaces the prior pass rather than merging)
//   - increment:    RetryDelta
//
// Zero-valued fields mean "no change" except where an explicit Set* flag
// distinguishes "set to empty" from "untouched".
//
// *TimelineYears uses append-dedup as well: year anchors are accumulated
// across loop iterations, never removed.
type Patch struct {
	Question string
	Claims   []Claim

	Entities         []string
	ExpandedEntities []string

	TimeAnchors     []string
	TimeQueries     []string
	TimelineYears   []string
	TimelineQueries []string

	Queries      []string
	ClaimQueries map[string][]string

	Documents        []Document
	ReplaceDocuments bool

	Candidates []string

	CandidateScores      []CandidateScore
	SelectedCandidate    string
	SetSelectedCandidate bool

	Verification    []ClaimVerification
	MissingClaims   []string
	SetVerification bool

	RetryDelta int
	NextAction Action

	FinalAnswer           string
	FinalAnswerCanonical  string
	FinalAnswerNormalized string
	SetFinal              bool

	Messages []Message
}

// Apply merges a patch into the state according to the per-field semantics
// documented on Patch.
func (s *State) Apply(p Patch) {
	if p.Question != "" {
		s.Question = p.Question
	}
	if p.Claims != nil {
		s.Claims = p.Claims
	}
	if p.Entities != nil {
		s.Entities = dedupNonEmpty(p.Entities)
	}
	if p.ExpandedEntities != nil {
		s.ExpandedEntities = dedupNonEmpty(p.ExpandedEntities)
	}

	s.TimeAnchors = appendDedup(s.TimeAnchors, p.TimeAnchors...)
	s.TimeQueries = appendDedup(s.TimeQueries, p.TimeQueries...)
	s.TimelineYears = appendDedup(s.TimelineYears, p.TimelineYears...)
	s.TimelineQueries = appendDedup(s.TimelineQueries, p.TimelineQueries...)

	s.Queries = appendDedup(s.Queries, p.Queries...)

	if p.ClaimQueries != nil {
		s.ClaimQueries = p.ClaimQueries
	}
	if p.ReplaceDocuments {
		s.Documents = p.Documents
	}
	if p.Candidates != nil {
		s.Candidates = p.Candidates
	}
	if p.CandidateScores != nil {
		s.CandidateScores = p.CandidateScores
	}
	if p.SetSelectedCandidate {
		s.SelectedCandidate = p.SelectedCandidate
	}
	if p.SetVerification {
		s.Verification = p.Verification
		s.MissingClaims = p.MissingClaims
	}

	s.RetryCount += p.RetryDelta

	if p.NextAction != "" {
		s.NextAction = p.NextAction
	}
	if p.SetFinal {
		s.FinalAnswer = p.FinalAnswer
		s.FinalAnswerCanonical = p.FinalAnswerCanonical
		s.FinalAnswerNormalized = p.FinalAnswerNormalized
	}

	s.Messages = append(s.Messages, p.Messages...)
}

// appendDedup appends only strings not already present, preserving order.
func appendDedup(dst []string, add ...string) []string {
	if len(add) == 0 {
		return dst
	}
	seen := make(map[string]struct{}, len(dst)+len(add))
	for _, q := range dst {
		seen[q] = struct{}{}
	}
	for _, q := range add {
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		dst = append(dst, q)
	}
	return dst
}

// dedupNonEmpty drops empty strings and duplicates, preserving first-seen
// order.
func dedupNonEmpty(xs []string) []string {
	out := make([]string, 0, len(xs))
	seen := make(map[string]struct{}, len(xs))
	for _, x := range xs {
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
