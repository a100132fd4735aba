package ports

import (
	"context"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/template"
)

// FeedFetcher pulls the ordered candidate list for a feed URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.CandidateEntry, error)
}

// TemplateResolver turns a template id plus options into a merged,
// generation-ready template.
type TemplateResolver interface {
	Resolve(templateID string, opts domain.GenerationOptions) (template.Merged, error)
}

// FactExtractor derives semantic facts (work, venue, period) from a
// candidate, driving the canonical-key computation.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, entry domain.CandidateEntry, tmpl template.Merged) (domain.ExtractedFacts, error)
}

// ArticleGenerator produces the article fields for a generation request.
type ArticleGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedArticle, error)
}

// RecordStore persists dedup records keyed by canonical key. Reserve is
// the atomic claim: it returns false (plus the existing reference, when
// known) if another run already holds the key.
type RecordStore interface {
	CheckDuplicate(ctx context.Context, key string) (*domain.DedupRecord, error)
	Reserve(ctx context.Context, key, runID string) (bool, *domain.DedupRecord, error)
	Complete(ctx context.Context, key, publishRef string) error
	Release(ctx context.Context, key, runID string) error
	Reset(ctx context.Context, key string) error
}

// Publisher pushes a generated article to its target (CMS post or
// MDX file backed by a pull request).
type Publisher interface {
	Publish(ctx context.Context, article domain.GeneratedArticle, facts domain.ExtractedFacts) (domain.PublishResult, error)
}

// ProgressSink receives ordered step events. Delivery is fire-and-forget:
// implementations log failures but never surface them to the run.
type ProgressSink interface {
	Notify(ctx context.Context, event domain.ProgressEvent)
}
