package research

// Config carries every knob the pipeline reads. It is passed explicitly at
// construction; stages never consult process-wide environment state.
type Config struct {
	// MaxRetries bounds the retrieve<->coverage feedback loop. Once
	// RetryCount reaches it, routing back to retrieval is forbidden.
	MaxRetries int

	// MaxDocuments caps accepted documents per retrieval pass.
	MaxDocuments int

	// PerQueryResults caps accepted search results consumed per query.
	PerQueryResults int

	// MaxCandidates caps pre-evidence candidate answers.
	MaxCandidates int

	// Evidence excerpt sizes per call site, in characters.
	VerifyEvidenceChars int
	ScoreEvidenceChars  int
	FinalEvidenceChars  int

	// BlockedHosts are matched as case-insensitive substrings of a result's
	// hostname; matching URLs are never fetched.
	BlockedHosts []string
}

// DefaultBlockedHosts is the fixed blocklist of social/UGC domains whose
// pages are noise for evidence gathering.
var DefaultBlockedHosts = []string{
	"facebook.com",
	"instagram.com",
	"x.com",
	"twitter.com",
	"tiktok.com",
	"pinterest.com",
	"reddit.com",
	"zhihu.com",
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          1,
		MaxDocuments:        20,
		PerQueryResults:     3,
		MaxCandidates:       5,
		VerifyEvidenceChars: 800,
		ScoreEvidenceChars:  600,
		FinalEvidenceChars:  1800,
		BlockedHosts:        append([]string(nil), DefaultBlockedHosts...),
	}
}

// withDefaults fills any unset field so a partially populated Config is
// always usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	// Zero retries is a valid configuration (no feedback loop), so only a
	// negative value falls back to the default.
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = d.MaxDocuments
	}
	if c.PerQueryResults <= 0 {
		c.PerQueryResults = d.PerQueryResults
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = d.MaxCandidates
	}
	if c.VerifyEvidenceChars <= 0 {
		c.VerifyEvidenceChars = d.VerifyEvidenceChars
	}
	if c.ScoreEvidenceChars <= 0 {
		c.ScoreEvidenceChars = d.ScoreEvidenceChars
	}
	if c.FinalEvidenceChars <= 0 {
		c.FinalEvidenceChars = d.FinalEvidenceChars
	}
	if c.BlockedHosts == nil {
		c.BlockedHosts = d.BlockedHosts
	}
	return c
}
