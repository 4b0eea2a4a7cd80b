package research

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const jsonOnlySystem = "Return JSON only. No markdown."

// EntityExpand asks the generator for key entities in the question/claims
// plus alias and alternate names. Failures yield empty sets; entity expansion
// is a best-effort signal, never a gate.
func (s *Stages) EntityExpand(ctx context.Context, st *State) (Patch, error) {
	prompt := fmt.Sprintf(
		"Extract key entities (people, places, organizations, works, events) from the question/claims,\n"+
			"and propose alias/alternate names (translations, abbreviations, pen names, historical names).\n"+
			"Return JSON only:\n"+
			`{ "entities": ["..."], "expanded": ["..."] }`+"\n"+
			"Question:\n%s\n\nClaims:\n%s\n",
		st.Question, formatClaims(st.Claims))

	var parsed struct {
		Entities []string `json:"entities"`
		Expanded []string `json:"expanded"`
	}
	raw, err := s.gen.Complete(ctx, jsonOnlySystem, prompt)
	if err == nil {
		err = decodeObject(raw, &parsed)
	}
	if err != nil {
		s.logger.Warn("entity_expand: no entities extracted", zap.Error(err))
		return Patch{Entities: []string{}, ExpandedEntities: []string{}}, nil
	}

	return Patch{
		Entities:         dedupNonEmpty(parsed.Entities),
		ExpandedEntities: dedupNonEmpty(parsed.Expanded),
	}, nil
}
