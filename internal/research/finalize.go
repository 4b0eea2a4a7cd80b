package research

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/parallaxlabs/deepresearch/internal/answer"
)

// noEvidenceAnswer is the only hard-coded terminal text in the system, used
// when no documents were ever retrieved.
const noEvidenceAnswer = "Final Answer: Unknown\n" +
	"Evidence:\n" +
	"- No sources were retrieved, so the answer cannot be verified.\n" +
	"Sources:\n"

// formatSourcePack renders the citation-indexed evidence pack for the final
// prompt, marking truncation explicitly.
func formatSourcePack(docs []Document, maxChars int) string {
	if len(docs) == 0 {
		return "(no evidence documents)"
	}
	chunks := make([]string, 0, len(docs))
	for i, d := range docs {
		title := strings.ReplaceAll(strings.TrimSpace(d.Title), "\n", " ")
		content := d.Content
		if len(content) > maxChars {
			content = truncateStr(content, maxChars) + "\n[TRUNCATED]"
		}
		chunks = append(chunks, fmt.Sprintf("[S%d] %s\nURL: %s\nCONTENT:\n%s\n", i+1, title, d.URL, content))
	}
	return strings.Join(chunks, "\n\n")
}

// Finalize produces the cited final answer and its canonical and normalized
// forms. The canonical form is chosen from the candidate pool by the
// equivalence rules in the answer package, and the answer's first line is
// rewritten to use it.
func (s *Stages) Finalize(ctx context.Context, st *State) (Patch, error) {
	if len(st.Documents) == 0 {
		return Patch{
			FinalAnswer:           noEvidenceAnswer,
			FinalAnswerCanonical:  "Unknown",
			FinalAnswerNormalized: answer.Normalize("Unknown"),
			SetFinal:              true,
			Messages:              []Message{{Role: "assistant", Content: noEvidenceAnswer}},
		}, nil
	}

	prompt := fmt.Sprintf(
		"You are a deep research assistant. You MUST answer based ONLY on the evidence pack.\n"+
			"Output format (must follow exactly):\n"+
			"1) First line: Final Answer: <answer only>\n"+
			"2) Evidence: bullet list. Each bullet MUST end with citations like [S1] or [S2][S3].\n"+
			"3) Sources list: format 'S1: url'\n"+
			"4) For each claim, either provide cited support or explicitly say it is missing.\n\n"+
			"Question:\n%s\n\nSelected candidate (if any):\n%s\n\nClaims:\n%s\n\nEvidence Pack:\n%s\n",
		st.Question, st.SelectedCandidate, formatClaims(st.Claims),
		formatSourcePack(st.Documents, s.cfg.FinalEvidenceChars))

	answerText, err := s.gen.Complete(ctx, "", prompt)
	if err != nil {
		s.logger.Warn("finalize: generation failed, composing degraded answer", zap.Error(err))
		answerText = s.degradedAnswer(st)
	}
	answerText = strings.TrimSpace(answerText)

	rawAnswer := answer.ExtractFinalAnswer(answerText)
	pool := append([]string(nil), st.Candidates...)
	if st.SelectedCandidate != "" {
		pool = append(pool, st.SelectedCandidate)
	}
	canonical := answer.Canonicalize(rawAnswer, pool)

	// Keep the evidence body but standardize the first-line answer.
	lines := strings.Split(answerText, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.ToLower(lines[0]), "final answer:") {
		lines[0] = "Final Answer: " + canonical
	} else {
		lines = append([]string{"Final Answer: " + canonical}, lines...)
	}
	answerText = strings.Join(lines, "\n")

	return Patch{
		FinalAnswer:           answerText,
		FinalAnswerCanonical:  canonical,
		FinalAnswerNormalized: answer.Normalize(canonical),
		SetFinal:              true,
		Messages:              []Message{{Role: "assistant", Content: answerText}},
	}, nil
}

// degradedAnswer assembles a best-effort answer from the selected candidate
// and the fetched source URLs when the final generation call itself fails.
func (s *Stages) degradedAnswer(st *State) string {
	best := st.SelectedCandidate
	if best == "" {
		best = "Unknown"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Final Answer: %s\n", best)
	sb.WriteString("Evidence:\n- The answer synthesis step failed; sources below were retrieved but not summarized. [S1]\n")
	sb.WriteString("Sources:\n")
	for i, d := range st.Documents {
		fmt.Fprintf(&sb, "S%d: %s\n", i+1, d.URL)
	}
	return sb.String()
}
