package research

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// GenerateCandidates produces a small set of plausible free-text answers
// before any evidence exists, using only the question and claims as
// constraints. The pool later feeds candidate scoring and answer
// canonicalization.
func (s *Stages) GenerateCandidates(ctx context.Context, st *State) (Patch, error) {
	prompt := fmt.Sprintf(
		"Generate 3-5 plausible candidate answers for the question.\n"+
			"Use the claims as constraints. Do NOT use evidence yet.\n"+
			"Return JSON list only.\n"+
			"Question:\n%s\n\nClaims:\n%s\n",
		st.Question, formatClaims(st.Claims))

	var candidates []string
	raw, err := s.gen.Complete(ctx, "Return ONLY a JSON list, no extra text.", prompt)
	if err == nil {
		err = decodeArray(raw, &candidates)
	}
	if err != nil {
		s.logger.Warn("generate_candidates: no candidates", zap.Error(err))
		candidates = nil
	}
	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}

	return Patch{Candidates: dedupNonEmpty(candidates)}, nil
}
