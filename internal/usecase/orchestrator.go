// Package usecase contains the generation orchestrator: the bounded
// skip/advance loop that walks feed candidates through validation,
// template resolution, extraction, dedup reservation, generation, and
// publish. A duplicate key is the one recoverable condition; every other
// failure is fatal for the run.
package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ArticleForge/internal/dedup"
	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
	"ArticleForge/internal/validation"
)

// Step phases reported to the progress sink for each candidate.
const (
	stepFetch = iota + 1
	stepValidate
	stepResolve
	stepExtract
	stepDedup
	stepGenerate
	stepPublish
	totalSteps = stepPublish
)

// Status is the terminal state of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
)

// RunParams carries everything one invocation needs. No ambient
// configuration is consulted inside the loop.
type RunParams struct {
	Source      domain.FeedSource
	TemplateID  string
	Options     domain.GenerationOptions
	StartIndex  int
	MaxAttempts int
}

// Outcome reports how a run ended.
type Outcome struct {
	RunID          string
	Status         Status
	CanonicalKey   string
	Article        domain.GeneratedArticle
	Publish        domain.PublishResult
	AttemptsUsed   int
	DuplicatesSeen int
	LastDuplicate  string
}

// Deps wires the collaborating ports into the orchestrator.
type Deps struct {
	Fetcher   ports.FeedFetcher
	Resolver  ports.TemplateResolver
	Extractor ports.FactExtractor
	Generator ports.ArticleGenerator
	Records   ports.RecordStore
	Publisher ports.Publisher
	Progress  ports.ProgressSink
	Logger    *slog.Logger
}

// Orchestrator drives one generation run at a time. Instances are
// stateless between runs and safe to reuse.
type Orchestrator struct {
	fetcher   ports.FeedFetcher
	resolver  ports.TemplateResolver
	extractor ports.FactExtractor
	generator ports.ArticleGenerator
	records   ports.RecordStore
	publisher ports.Publisher
	progress  ports.ProgressSink
	logger    *slog.Logger
}

// NewOrchestrator constructs the orchestration component.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		fetcher:   deps.Fetcher,
		resolver:  deps.Resolver,
		extractor: deps.Extractor,
		generator: deps.Generator,
		records:   deps.Records,
		publisher: deps.Publisher,
		progress:  deps.Progress,
		logger:    deps.Logger,
	}
}

// Run walks candidates from StartIndex, consuming one candidate per
// attempt up to MaxAttempts. The first successful generation+publish
// ends the run; a run where every attempted candidate was a duplicate
// (or rejected by validation) ends as exhausted.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (Outcome, error) {
	outcome := Outcome{
		RunID:  uuid.NewString(),
		Status: StatusFailed,
	}

	o.notify(ctx, stepFetch, "fetching feed", params.Source.URL)
	entries, err := o.fetcher.Fetch(ctx, params.Source.URL)
	if err != nil {
		return outcome, err
	}
	if len(entries) == 0 || params.StartIndex < 0 || params.StartIndex >= len(entries) {
		return outcome, fmt.Errorf("%w: feed has %d items, start index %d",
			domain.ErrNoCandidates, len(entries), params.StartIndex)
	}

	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for idx := params.StartIndex; idx < len(entries) && outcome.AttemptsUsed < maxAttempts; idx++ {
		outcome.AttemptsUsed++

		entry := entries[idx]
		entry.SourceID = params.Source.ID

		done, err := o.processCandidate(ctx, entry, params, &outcome)
		if err != nil {
			return outcome, err
		}
		if done {
			outcome.Status = StatusSucceeded
			return outcome, nil
		}
	}

	outcome.Status = StatusExhausted
	o.notify(ctx, stepPublish, "attempts exhausted",
		fmt.Sprintf("%d duplicates in %d attempts", outcome.DuplicatesSeen, outcome.AttemptsUsed))
	return outcome, nil
}

// processCandidate runs one candidate through the pipeline. It returns
// (false, nil) when the loop should advance to the next candidate.
func (o *Orchestrator) processCandidate(ctx context.Context, entry domain.CandidateEntry, params RunParams, outcome *Outcome) (bool, error) {
	o.notify(ctx, stepValidate, "validating candidate", entry.Title)
	admission := validation.Validate(entry, params.Source.Validation)
	if !admission.IsValid {
		o.notify(ctx, stepValidate, "candidate rejected",
			fmt.Sprintf("score %d: %v", admission.Score, admission.Reasons))
		return false, nil
	}

	o.notify(ctx, stepResolve, "resolving template", params.TemplateID)
	tmpl, err := o.resolver.Resolve(params.TemplateID, params.Options)
	if err != nil {
		return false, err
	}

	o.notify(ctx, stepExtract, "extracting facts", entry.Link)
	facts, err := o.extractor.ExtractFacts(ctx, entry, tmpl)
	if err != nil {
		return false, err
	}

	key := dedup.ComputeCanonicalKey(facts)
	o.notify(ctx, stepDedup, "checking duplicate", key)
	reserved, existing, err := o.records.Reserve(ctx, key, outcome.RunID)
	if err != nil {
		return false, err
	}
	if !reserved {
		dup := &domain.DuplicateKeyError{Key: key}
		if existing != nil {
			dup.ExistingRef = existing.PublishRef
		}
		outcome.DuplicatesSeen++
		outcome.LastDuplicate = dup.Error()
		o.notify(ctx, stepDedup, "duplicate found, skipping", dup.Error())
		o.debug("duplicate candidate", "key", key, "title", entry.Title)
		return false, nil
	}

	o.notify(ctx, stepGenerate, "generating article", entry.Title)
	article, err := o.generator.Generate(ctx, domain.GenerationRequest{
		Entry:   entry,
		Facts:   facts,
		Prompt:  tmpl.Prompt,
		Options: params.Options,
	})
	if err != nil {
		o.release(ctx, key, outcome.RunID)
		return false, err
	}

	o.notify(ctx, stepPublish, "publishing article", article.Title)
	published, err := o.publisher.Publish(ctx, article, facts)
	if err != nil {
		o.release(ctx, key, outcome.RunID)
		outcome.Article = article
		return false, err
	}

	if err := o.records.Complete(ctx, key, published.Ref()); err != nil {
		return false, err
	}

	outcome.CanonicalKey = key
	outcome.Article = article
	outcome.Publish = published
	o.notify(ctx, stepPublish, "published", published.Ref())
	return true, nil
}

// release frees a reservation after a fatal error; the run is already
// failing, so a release failure is only logged.
func (o *Orchestrator) release(ctx context.Context, key, runID string) {
	if err := o.records.Release(ctx, key, runID); err != nil {
		o.debug("release reservation failed", "key", key, "error", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, step int, message, detail string) {
	if o.progress == nil {
		return
	}
	o.progress.Notify(ctx, domain.ProgressEvent{
		Step:       step,
		TotalSteps: totalSteps,
		Message:    message,
		Detail:     detail,
	})
}

func (o *Orchestrator) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}
