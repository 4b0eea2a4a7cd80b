package research

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// TimeAnchor extracts time/sequence anchors from the question and claims and
// proposes time-specific queries. Anchors accumulate in state and are never
// removed.
func (s *Stages) TimeAnchor(ctx context.Context, st *State) (Patch, error) {
	prompt := fmt.Sprintf(
		"Extract time/sequence anchors from the question/claims.\n"+
			"Focus on words like before/after/resumed/shortly/preceded/returned.\n"+
			"Return JSON only:\n"+
			`{ "time_anchors": ["..."], "time_queries": ["..."] }`+"\n"+
			"Make 2-4 time-specific queries using official sources keywords like press release, schedule, program resume.\n"+
			"Question:\n%s\n\nClaims:\n%s\n",
		st.Question, formatClaims(st.Claims))

	var parsed struct {
		TimeAnchors []string `json:"time_anchors"`
		TimeQueries []string `json:"time_queries"`
	}
	raw, err := s.gen.Complete(ctx, jsonOnlySystem, prompt)
	if err == nil {
		err = decodeObject(raw, &parsed)
	}
	if err != nil {
		s.logger.Warn("time_anchor: no anchors extracted", zap.Error(err))
		return Patch{}, nil
	}

	return Patch{
		TimeAnchors: dedupNonEmpty(parsed.TimeAnchors),
		TimeQueries: dedupNonEmpty(parsed.TimeQueries),
	}, nil
}
