package research

// Claim is an atomic, independently verifiable assertion derived from the
// user's question. IDs are unique within a session and stable for its
// lifetime.
type Claim struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Must        bool   `json:"must"`
}

// SearchResult is one entry returned by the search capability.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Document is the extracted text of a fetched page or PDF.
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Message is a progress or transcript entry accumulated across stages.
type Message struct {
	Role    string `json:"role"` // "user", "assistant"
	Content string `json:"content"`
}

// Action is the routing label written by the coverage check. It is kept in
// state as an observability echo; routing itself uses the typed Decision.
type Action string

const (
	ActionRetrieve        Action = "retrieve"
	ActionScoreCandidates Action = "score_candidates"
	ActionFinalize        Action = "finalize"
)

// CandidateScore is one scored candidate answer (diagnostic output).
type CandidateScore struct {
	Candidate string  `json:"candidate"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason,omitempty"`
}

// ClaimVerification is the verifier's judgment for one claim.
type ClaimVerification struct {
	ID        string   `json:"id"`
	Supported bool     `json:"supported"`
	Sources   []string `json:"sources,omitempty"`
	Note      string   `json:"note,omitempty"`
}

// State is the research-session state threaded through every pipeline stage.
// Stages never mutate it directly; they return a Patch that the pipeline
// applies. One State exists per session, keyed by SessionID.
type State struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`

	Question string  `json:"question"`
	Claims   []Claim `json:"claims,omitempty"`

	Entities         []string `json:"entities,omitempty"`
	ExpandedEntities []string `json:"expanded_entities,omitempty"`

	TimeAnchors     []string `json:"time_anchors,omitempty"`
	TimeQueries     []string `json:"time_queries,omitempty"`
	TimelineYears   []string `json:"timeline_years,omitempty"`
	TimelineQueries []string `json:"timeline_queries,omitempty"`

	// Queries is the global query list; it only ever grows and never holds
	// duplicates. ClaimQueries is keyed by known claim ids only.
	Queries      []string            `json:"queries,omitempty"`
	ClaimQueries map[string][]string `json:"claim_queries,omitempty"`

	// Documents holds the evidence of the most recent retrieval pass. Each
	// pass replaces the collection wholesale (see the retrieve stage).
	Documents []Document `json:"documents,omitempty"`

	Candidates        []string            `json:"candidates,omitempty"`
	CandidateScores   []CandidateScore    `json:"candidate_scores,omitempty"`
	SelectedCandidate string              `json:"selected_candidate,omitempty"`
	Verification      []ClaimVerification `json:"claim_verification,omitempty"`
	MissingClaims     []string            `json:"missing_claims,omitempty"`

	RetryCount int    `json:"retry_count"`
	NextAction Action `json:"next_action,omitempty"`

	FinalAnswer           string `json:"final_answer,omitempty"`
	FinalAnswerCanonical  string `json:"final_answer_canonical,omitempty"`
	FinalAnswerNormalized string `json:"final_answer_normalized,omitempty"`

	Messages []Message `json:"messages,omitempty"`
}

// ClaimByID returns the claim with the given id, if present.
func (s *State) ClaimByID(id string) (Claim, bool) {
	for _, c := range s.Claims {
		if c.ID == id {
			return c, true
		}
	}
	return Claim{}, false
}

// claimIDSet returns the set of known claim ids.
func (s *State) claimIDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Claims))
	for _, c := range s.Claims {
		ids[c.ID] = struct{}{}
	}
	return ids
}
