package research

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ScoreCandidates ranks the pre-evidence candidate answers against the
// fetched documents and picks the best. A no-op when no candidates exist;
// parse failures yield empty scores and no pick.
func (s *Stages) ScoreCandidates(ctx context.Context, st *State) (Patch, error) {
	if len(st.Candidates) == 0 {
		return Patch{
			CandidateScores:      []CandidateScore{},
			SelectedCandidate:    "",
			SetSelectedCandidate: true,
		}, nil
	}

	candidatesJSON, _ := json.Marshal(st.Candidates)
	prompt := fmt.Sprintf(
		"Given the evidence, score each candidate (0-5) and pick the best.\n"+
			"Return JSON only:\n"+
			"{\n"+
			`  "scores": [{"candidate": "...", "score": 0-5, "reason": "..."}],`+"\n"+
			`  "best": "candidate or empty"`+"\n"+
			"}\n"+
			"Question:\n%s\n\nCandidates:\n%s\n\nEvidence:\n%s\n",
		st.Question, candidatesJSON, formatEvidence(st.Documents, s.cfg.ScoreEvidenceChars))

	var parsed struct {
		Scores []CandidateScore `json:"scores"`
		Best   string           `json:"best"`
	}
	raw, err := s.gen.Complete(ctx, jsonOnlySystem, prompt)
	if err == nil {
		err = decodeObject(raw, &parsed)
	}
	if err != nil {
		s.logger.Warn("score_candidates: scoring unusable", zap.Error(err))
		parsed.Scores = nil
		parsed.Best = ""
	}

	return Patch{
		CandidateScores:      parsed.Scores,
		SelectedCandidate:    parsed.Best,
		SetSelectedCandidate: true,
		Messages:             []Message{progressMsg("[score_candidates] best: %s", parsed.Best)},
	}, nil
}
