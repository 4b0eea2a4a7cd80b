package research

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// VerifyClaims classifies each claim as supported or missing against the
// current evidence pack. With no claims or no documents every claim is
// immediately marked missing without a generation call: no evidence means
// nothing can be considered supported.
func (s *Stages) VerifyClaims(ctx context.Context, st *State) (Patch, error) {
	if len(st.Claims) == 0 || len(st.Documents) == 0 {
		return Patch{
			Verification:    []ClaimVerification{},
			MissingClaims:   claimIDs(st.Claims),
			SetVerification: true,
		}, nil
	}

	prompt := fmt.Sprintf(
		"Verify each claim against the evidence pack.\n"+
			"Return JSON only in this format:\n"+
			"{\n"+
			`  "items": [`+"\n"+
			`    {"id":"c1","supported":true,"sources":["S1","S3"],"note":"..."}`+"\n"+
			"  ],\n"+
			`  "missing_claims": ["c2"]`+"\n"+
			"}\n\n"+
			"Claims:\n%s\n\nEvidence:\n%s\n",
		formatClaims(st.Claims), formatEvidence(st.Documents, s.cfg.VerifyEvidenceChars))

	var parsed struct {
		Items         []ClaimVerification `json:"items"`
		MissingClaims []string            `json:"missing_claims"`
	}
	raw, err := s.gen.Complete(ctx, jsonOnlySystem, prompt)
	if err == nil {
		err = decodeObject(raw, &parsed)
	}
	if err != nil {
		s.logger.Warn("verify_claims: marking all claims missing", zap.Error(err))
		return Patch{
			Verification:    []ClaimVerification{},
			MissingClaims:   claimIDs(st.Claims),
			SetVerification: true,
		}, nil
	}

	return Patch{
		Verification:    parsed.Items,
		MissingClaims:   dedupNonEmpty(parsed.MissingClaims),
		SetVerification: true,
	}, nil
}

func claimIDs(claims []Claim) []string {
	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ID)
	}
	return ids
}
