package domain

import "time"

// KeywordLogic selects how a feed's keyword list is combined during admission.
type KeywordLogic string

const (
	KeywordLogicAND KeywordLogic = "AND"
	KeywordLogicOR  KeywordLogic = "OR"
)

// ValidationConfig is the immutable rule set embedded in a FeedSource.
// MinScore is compared against an admission score in [0,100].
type ValidationConfig struct {
	Keywords        []string     `yaml:"keywords" json:"keywords"`
	KeywordLogic    KeywordLogic `yaml:"keywordLogic" json:"keywordLogic"`
	RequireJapanese bool         `yaml:"requireJapanese" json:"requireJapanese"`
	MinScore        int          `yaml:"minScore" json:"minScore"`
	IsEnabled       bool         `yaml:"isEnabled" json:"isEnabled"`
}

// FeedSource is a subscribed feed. Sources are soft-deactivated, never
// physically deleted while generated content references them.
type FeedSource struct {
	ID         string           `yaml:"id" json:"id"`
	URL        string           `yaml:"url" json:"url"`
	Title      string           `yaml:"title" json:"title"`
	Active     bool             `yaml:"active" json:"active"`
	Validation ValidationConfig `yaml:"validation" json:"validation"`
	CreatedBy  string           `yaml:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt  time.Time        `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt  time.Time        `yaml:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// CandidateEntry is one RSS item under consideration. Fetched per run,
// never persisted verbatim.
type CandidateEntry struct {
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt *time.Time
	Categories  []string
	SourceID    string
}

// ValidationResult is the admission decision for a single candidate.
// Derived each run, never persisted.
type ValidationResult struct {
	IsValid bool
	Score   int
	Reasons []string
}
