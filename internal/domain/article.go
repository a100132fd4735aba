package domain

import "time"

// ExtractedFacts are the semantic facts pulled out of a candidate by the
// extraction step. Canonical keys are derived from these, not from feed
// mechanics, because the same real-world event is announced by many
// superficially different items.
type ExtractedFacts struct {
	WorkName    string
	Venue       string
	PeriodStart string
	PeriodEnd   string
	Price       string
	SourceURL   string
}

// GenerationOptions carries the caller-resolved knobs for one generation
// call. Condition expressions in section variants evaluate against these.
type GenerationOptions struct {
	TargetLength int
	Tone         string
	Language     string
	KeywordHints []string
	Debug        bool
}

// GenerationRequest pairs a candidate with its resolved template and options.
type GenerationRequest struct {
	Entry   CandidateEntry
	Facts   ExtractedFacts
	Prompt  string
	Options GenerationOptions
}

// GeneratedArticle is the output of a successful generation call.
type GeneratedArticle struct {
	Title       string
	Body        string
	Excerpt     string
	Tags        []string
	Categories  []string
	WordCount   int
	Model       string
	GeneratedAt time.Time
}

// PublishTarget selects where generated articles land.
type PublishTarget string

const (
	PublishTargetWordPress PublishTarget = "wordpress"
	PublishTargetMDX       PublishTarget = "mdx"
)

// PublishResult references the published artifact. On failure the
// generated article is carried back by the error so it is not lost.
type PublishResult struct {
	Target   PublishTarget
	PostID   string
	FilePath string
	PRRef    string
}

// Ref renders the publish reference as a single operator-facing string.
func (p PublishResult) Ref() string {
	if p.PostID != "" {
		return p.PostID
	}
	if p.PRRef != "" {
		return p.FilePath + " (" + p.PRRef + ")"
	}
	return p.FilePath
}

// DedupRecord is the durable row keyed by canonical key.
type DedupRecord struct {
	CanonicalKey string    `db:"canonical_key"`
	PublishRef   string    `db:"publish_ref"`
	RunID        string    `db:"run_id"`
	CreatedAt    time.Time `db:"created_at"`
}
