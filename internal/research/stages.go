package research

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Stages holds the capability clients and configuration shared by all
// pipeline stages. Each stage is a method reading a subset of state and
// returning a Patch; stage-internal capability failures never escape.
type Stages struct {
	gen    Generator
	search Searcher
	fetch  Fetcher
	cfg    Config
	logger *zap.Logger

	// extraBlocked augments cfg.BlockedHosts and may be swapped at
	// runtime by config hot-reload.
	blockMu      sync.RWMutex
	extraBlocked []string
}

// NewStages wires the capability clients into a stage set.
func NewStages(gen Generator, search Searcher, fetch Fetcher, cfg Config, logger *zap.Logger) *Stages {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stages{
		gen:    gen,
		search: search,
		fetch:  fetch,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// SetExtraBlockedHosts replaces the runtime-augmented blocklist. Safe to
// call while runs are in flight; the next retrieval pass sees the change.
func (s *Stages) SetExtraBlockedHosts(hosts []string) {
	s.blockMu.Lock()
	s.extraBlocked = append([]string(nil), hosts...)
	s.blockMu.Unlock()
}

// formatClaims renders claims as a bullet list for prompts.
func formatClaims(claims []Claim) string {
	if len(claims) == 0 {
		return "(no claims)"
	}
	var sb strings.Builder
	for _, c := range claims {
		fmt.Fprintf(&sb, "- %s: %s\n", c.ID, c.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatEvidence renders the evidence pack with [Sn] markers, capping each
// document's content at maxChars characters.
func formatEvidence(docs []Document, maxChars int) string {
	if len(docs) == 0 {
		return ""
	}
	chunks := make([]string, 0, len(docs))
	for i, d := range docs {
		title := strings.ReplaceAll(strings.TrimSpace(d.Title), "\n", " ")
		chunks = append(chunks, fmt.Sprintf("[S%d] %s\n%s", i+1, title, truncateStr(d.Content, maxChars)))
	}
	return strings.Join(chunks, "\n\n")
}

// progressMsg builds an assistant-role status message for the session
// transcript.
func progressMsg(format string, args ...interface{}) Message {
	return Message{Role: "assistant", Content: fmt.Sprintf(format, args...)}
}
