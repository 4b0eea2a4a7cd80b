package research

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const parseClaimsSystem = "Return ONLY a JSON array. No markdown, no extra text."

// ParseClaims extracts the question from the session transcript and asks the
// generator to split it into verifiable claims. On parse failure it falls
// back to a single catch-all claim so the pipeline always proceeds.
func (s *Stages) ParseClaims(ctx context.Context, st *State) (Patch, error) {
	question := st.Question
	if question == "" {
		question = lastUserMessage(st.Messages)
	}

	prompt := fmt.Sprintf(
		"You are an information extractor. Split the user question into a set of independently verifiable claims.\n"+
			"Rules:\n"+
			"1) Output a JSON array only, no surrounding text.\n"+
			"2) Each element has fields: id, description, must.\n"+
			"3) Make descriptions concrete; keep years, amounts, places, relationships.\n"+
			"4) Set must to true for every claim.\n\n"+
			"User question: %s\n", question)

	var claims []Claim
	raw, err := s.gen.Complete(ctx, parseClaimsSystem, prompt)
	if err == nil {
		err = decodeArray(raw, &claims)
	}
	if err != nil || len(claims) == 0 {
		s.logger.Warn("parse_claims: falling back to catch-all claim", zap.Error(err))
		claims = []Claim{{ID: "c1", Description: "Answer the question from web evidence", Must: true}}
	}
	for i := range claims {
		claims[i].Must = true
	}

	return Patch{
		Question: question,
		Claims:   claims,
		Messages: []Message{progressMsg("[parse_claims] extracted %d claims", len(claims))},
	}, nil
}

// lastUserMessage returns the most recent user-role message content.
func lastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	if len(msgs) > 0 {
		return msgs[len(msgs)-1].Content
	}
	return ""
}
