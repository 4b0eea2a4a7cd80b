// Package answer provides pure text-equivalence and canonicalization
// utilities for final answers. No I/O, deterministic, idempotent.
package answer

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are corporate/legal tokens dropped during normalization so
// "Acme Inc." and "Acme" compare equal.
var legalSuffixes = map[string]struct{}{
	"ltd": {}, "limited": {}, "inc": {}, "incorporated": {},
	"corp": {}, "corporation": {}, "co": {}, "company": {}, "group": {},
	"gmbh": {}, "sa": {}, "spa": {}, "plc": {}, "llc": {}, "srl": {},
	"bv": {}, "ag": {}, "kg": {}, "oy": {}, "oyj": {},
	"editore": {}, "editori": {}, "edizioni": {}, "editrice": {},
	"press": {}, "publishing": {}, "publisher": {}, "publishers": {},
}

var (
	markSymbols  = regexp.MustCompile("[™®©]")
	nonWordSpace = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// stripAccents decomposes to NFKD and drops combining marks.
func stripAccents(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func clean(s string) string {
	t := strings.ToLower(stripAccents(s))
	t = markSymbols.ReplaceAllString(t, "")
	t = nonWordSpace.ReplaceAllString(t, " ")
	return strings.TrimSpace(multiSpace.ReplaceAllString(t, " "))
}

// Normalize lowercases, strips accents and punctuation, and drops legal
// suffixes plus single-letter residue ("s p a" from "S.p.A."). Idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	var tokens []string
	for _, tok := range strings.Fields(clean(text)) {
		if _, legal := legalSuffixes[tok]; legal {
			continue
		}
		if len(tok) == 1 && isAlpha(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return strings.Join(tokens, " ")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// TokenSet returns the set of normalized tokens of text.
func TokenSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(Normalize(text)) {
		out[tok] = struct{}{}
	}
	return out
}

// Equivalent reports whether two answers denote the same thing: equal after
// normalization, one a substring of the other, or token overlap
// (|intersection| / max(|A|,|B|)) of at least 0.6. Symmetric but not
// transitive.
func Equivalent(a, b string) bool {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if strings.Contains(nb, na) || strings.Contains(na, nb) {
		return true
	}
	ta := TokenSet(na)
	tb := TokenSet(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	max := len(ta)
	if len(tb) > max {
		max = len(tb)
	}
	return float64(inter)/float64(max) >= 0.6
}

// ExtractFinalAnswer pulls the answer off a "Final Answer:" line, falling
// back to the first non-empty line.
func ExtractFinalAnswer(text string) string {
	if text == "" {
		return ""
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.ToLower(line), "final answer:") {
			if i := strings.Index(line, ":"); i >= 0 {
				return strings.TrimSpace(line[i+1:])
			}
		}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(strings.Split(trimmed, "\n")[0])
}

// isUnknown recognizes explicit don't-know answers that must never be
// force-matched onto a candidate.
func isUnknown(ans string) bool {
	switch strings.ToLower(strings.TrimSpace(ans)) {
	case "unknown", "unk", "na", "n/a", "n.a.", "?", "":
		return true
	}
	return Normalize(ans) == "unknown"
}

// Canonicalize maps a raw answer onto the most explicit equivalent member of
// the candidate pool. Unknown answers and unmatched answers pass through
// verbatim (trimmed).
func Canonicalize(rawAnswer string, candidates []string) string {
	if isUnknown(rawAnswer) {
		return strings.TrimSpace(rawAnswer)
	}

	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if t := strings.TrimSpace(c); t != "" {
			pool = append(pool, t)
		}
	}
	if len(pool) == 0 {
		return strings.TrimSpace(rawAnswer)
	}

	var matched []string
	for _, c := range pool {
		if Equivalent(rawAnswer, c) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return strings.TrimSpace(rawAnswer)
	}

	// Most explicit form: most normalized tokens, ties broken by longer raw
	// string.
	sort.SliceStable(matched, func(i, j int) bool {
		ti, tj := len(TokenSet(matched[i])), len(TokenSet(matched[j]))
		if ti != tj {
			return ti > tj
		}
		return len(matched[i]) > len(matched[j])
	})
	return matched[0]
}
