package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ArticleForge/internal/dedup"
	"ArticleForge/internal/domain"
	"ArticleForge/internal/template"
)

type fakeFetcher struct {
	entries []domain.CandidateEntry
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, feedURL string) ([]domain.CandidateEntry, error) {
	return f.entries, f.err
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(templateID string, opts domain.GenerationOptions) (template.Merged, error) {
	if f.err != nil {
		return template.Merged{}, f.err
	}
	return template.Merged{ID: templateID, Prompt: "write the article"}, nil
}

type fakeExtractor struct {
	err   error
	calls int
}

func (f *fakeExtractor) ExtractFacts(ctx context.Context, entry domain.CandidateEntry, tmpl template.Merged) (domain.ExtractedFacts, error) {
	f.calls++
	if f.err != nil {
		return domain.ExtractedFacts{}, f.err
	}
	return factsFor(entry), nil
}

func factsFor(entry domain.CandidateEntry) domain.ExtractedFacts {
	return domain.ExtractedFacts{
		WorkName:    entry.Title,
		Venue:       "渋谷ロフト",
		PeriodStart: "2026-09-01",
		SourceURL:   entry.Link,
	}
}

type fakeGenerator struct {
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedArticle, error) {
	f.calls++
	if f.err != nil {
		return domain.GeneratedArticle{}, f.err
	}
	return domain.GeneratedArticle{Title: req.Entry.Title, Body: "本文"}, nil
}

type fakeStore struct {
	existing  map[string]*domain.DedupRecord
	reserved  []string
	released  []string
	completed map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing:  map[string]*domain.DedupRecord{},
		completed: map[string]string{},
	}
}

func (f *fakeStore) seedDuplicate(entry domain.CandidateEntry) {
	key := dedup.ComputeCanonicalKey(factsFor(entry))
	f.existing[key] = &domain.DedupRecord{CanonicalKey: key, PublishRef: "prior-ref"}
}

func (f *fakeStore) CheckDuplicate(ctx context.Context, key string) (*domain.DedupRecord, error) {
	return f.existing[key], nil
}

func (f *fakeStore) Reserve(ctx context.Context, key, runID string) (bool, *domain.DedupRecord, error) {
	if record, exists := f.existing[key]; exists {
		return false, record, nil
	}
	f.existing[key] = &domain.DedupRecord{CanonicalKey: key, RunID: runID}
	f.reserved = append(f.reserved, key)
	return true, nil, nil
}

func (f *fakeStore) Complete(ctx context.Context, key, publishRef string) error {
	f.completed[key] = publishRef
	return nil
}

func (f *fakeStore) Release(ctx context.Context, key, runID string) error {
	f.released = append(f.released, key)
	delete(f.existing, key)
	return nil
}

func (f *fakeStore) Reset(ctx context.Context, key string) error {
	delete(f.existing, key)
	return nil
}

type fakePublisher struct {
	err   error
	calls int
}

func (f *fakePublisher) Publish(ctx context.Context, article domain.GeneratedArticle, facts domain.ExtractedFacts) (domain.PublishResult, error) {
	f.calls++
	if f.err != nil {
		return domain.PublishResult{}, f.err
	}
	return domain.PublishResult{Target: domain.PublishTargetWordPress, PostID: "77"}, nil
}

type captureSink struct {
	events []domain.ProgressEvent
}

func (c *captureSink) Notify(ctx context.Context, event domain.ProgressEvent) {
	c.events = append(c.events, event)
}

func (c *captureSink) countMessage(message string) int {
	n := 0
	for _, e := range c.events {
		if e.Message == message {
			n++
		}
	}
	return n
}

type harness struct {
	orchestrator *Orchestrator
	fetcher      *fakeFetcher
	extractor    *fakeExtractor
	generator    *fakeGenerator
	store        *fakeStore
	publisher    *fakePublisher
	sink         *captureSink
}

func newHarness(entries ...domain.CandidateEntry) *harness {
	h := &harness{
		fetcher:   &fakeFetcher{entries: entries},
		extractor: &fakeExtractor{},
		generator: &fakeGenerator{},
		store:     newFakeStore(),
		publisher: &fakePublisher{},
		sink:      &captureSink{},
	}
	h.orchestrator = NewOrchestrator(Deps{
		Fetcher:   h.fetcher,
		Resolver:  &fakeResolver{},
		Extractor: h.extractor,
		Generator: h.generator,
		Records:   h.store,
		Publisher: h.publisher,
		Progress:  h.sink,
	})
	return h
}

func entry(i int) domain.CandidateEntry {
	return domain.CandidateEntry{
		Title: fmt.Sprintf("イベント%d", i),
		Link:  fmt.Sprintf("https://example.jp/news/%d", i),
	}
}

func runParams() RunParams {
	return RunParams{
		Source: domain.FeedSource{
			ID:  "feed-1",
			URL: "https://example.jp/rss",
		},
		TemplateID:  "event-article",
		MaxAttempts: 5,
	}
}

func TestRunSkipsDuplicatesAndSucceeds(t *testing.T) {
	t.Parallel()

	h := newHarness(entry(1), entry(2), entry(3))
	h.store.seedDuplicate(entry(1))
	h.store.seedDuplicate(entry(2))

	outcome, err := h.orchestrator.Run(context.Background(), runParams())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if outcome.Status != StatusSucceeded {
		t.Fatalf("expected success, got %s", outcome.Status)
	}
	if outcome.Article.Title != "イベント3" {
		t.Fatalf("should have published item 3, got %q", outcome.Article.Title)
	}
	if outcome.DuplicatesSeen != 2 {
		t.Fatalf("expected 2 duplicates seen, got %d", outcome.DuplicatesSeen)
	}
	if outcome.AttemptsUsed != 3 {
		t.Fatalf("expected 3 attempts, got %d", outcome.AttemptsUsed)
	}
	if outcome.Publish.PostID != "77" {
		t.Fatalf("unexpected publish ref: %+v", outcome.Publish)
	}

	if got := h.sink.countMessage("duplicate found, skipping"); got != 2 {
		t.Fatalf("expected exactly 2 duplicate-skip events, got %d", got)
	}
	if got := h.sink.countMessage("published"); got != 1 {
		t.Fatalf("expected exactly 1 success event, got %d", got)
	}

	if ref := h.store.completed[outcome.CanonicalKey]; ref != "77" {
		t.Fatalf("publish ref should be stamped onto the record, got %q", ref)
	}
}

func TestRunExhaustsOnAllDuplicates(t *testing.T) {
	t.Parallel()

	h := newHarness(entry(1), entry(2))
	h.store.seedDuplicate(entry(1))
	h.store.seedDuplicate(entry(2))

	params := runParams()
	params.MaxAttempts = 2

	outcome, err := h.orchestrator.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if outcome.Status != StatusExhausted {
		t.Fatalf("expected exhaustion, got %s", outcome.Status)
	}
	if h.publisher.calls != 0 {
		t.Fatalf("no publish call may happen on exhaustion, got %d", h.publisher.calls)
	}
	if outcome.DuplicatesSeen != 2 {
		t.Fatalf("expected 2 duplicates, got %d", outcome.DuplicatesSeen)
	}
	if outcome.LastDuplicate == "" {
		t.Fatal("exhaustion must carry the last duplicate message")
	}
}

func TestRunProviderErrorIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(entry(1), entry(2))
	h.extractor.err = &domain.ProviderError{Step: "fact extraction", Err: errors.New("rate limited")}

	_, err := h.orchestrator.Run(context.Background(), runParams())
	if err == nil {
		t.Fatal("provider error must fail the run")
	}

	var provider *domain.ProviderError
	if !errors.As(err, &provider) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if h.extractor.calls != 1 {
		t.Fatalf("item 2 must never be attempted, extractor calls = %d", h.extractor.calls)
	}
	if h.generator.calls != 0 {
		t.Fatalf("generation must not run after a fatal error, calls = %d", h.generator.calls)
	}
}

func TestRunReleasesReservationOnPublishFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(entry(1))
	h.publisher.err = &domain.ProviderError{Step: "publish", Err: errors.New("cms down")}

	outcome, err := h.orchestrator.Run(context.Background(), runParams())
	if err == nil {
		t.Fatal("publish failure must fail the run")
	}

	if len(h.store.released) != 1 {
		t.Fatalf("reservation must be released after a fatal error, released = %v", h.store.released)
	}
	if outcome.Article.Title != "イベント1" {
		t.Fatal("the generated article must be preserved for salvage")
	}
}

func TestRunNoCandidates(t *testing.T) {
	t.Parallel()

	h := newHarness()
	_, err := h.orchestrator.Run(context.Background(), runParams())
	if !errors.Is(err, domain.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates for empty feed, got %v", err)
	}

	h = newHarness(entry(1))
	params := runParams()
	params.StartIndex = 5
	_, err = h.orchestrator.Run(context.Background(), params)
	if !errors.Is(err, domain.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates for out-of-range index, got %v", err)
	}
}

func TestRunStartIndexOffsetsCandidates(t *testing.T) {
	t.Parallel()

	h := newHarness(entry(1), entry(2))
	params := runParams()
	params.StartIndex = 1

	outcome, err := h.orchestrator.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if outcome.Article.Title != "イベント2" {
		t.Fatalf("start index must offset the walk, got %q", outcome.Article.Title)
	}
	if outcome.AttemptsUsed != 1 {
		t.Fatalf("expected a single attempt, got %d", outcome.AttemptsUsed)
	}
}

func TestRunValidationRejectionAdvances(t *testing.T) {
	t.Parallel()

	rejected := entry(1)
	rejected.Title = "english only title"
	admitted := entry(2)

	h := newHarness(rejected, admitted)
	params := runParams()
	params.Source.Validation = domain.ValidationConfig{
		RequireJapanese: true,
		KeywordLogic:    domain.KeywordLogicOR,
		IsEnabled:       true,
	}

	outcome, err := h.orchestrator.Run(context.Background(), params)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if outcome.Status != StatusSucceeded {
		t.Fatalf("expected success on the admitted item, got %s", outcome.Status)
	}
	if outcome.Article.Title != "イベント2" {
		t.Fatalf("rejected candidate must be skipped, got %q", outcome.Article.Title)
	}
	if got := h.sink.countMessage("candidate rejected"); got != 1 {
		t.Fatalf("expected 1 rejection event, got %d", got)
	}
}

func TestRunTemplateIntegrityErrorIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(entry(1), entry(2))
	resolver := &fakeResolver{err: &template.IntegrityError{TemplateID: "event-article", Detail: "boom"}}
	h.orchestrator = NewOrchestrator(Deps{
		Fetcher:   h.fetcher,
		Resolver:  resolver,
		Extractor: h.extractor,
		Generator: h.generator,
		Records:   h.store,
		Publisher: h.publisher,
		Progress:  h.sink,
	})

	_, err := h.orchestrator.Run(context.Background(), runParams())
	var integrity *template.IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("template integrity errors must propagate, got %v", err)
	}
	if h.extractor.calls != 0 {
		t.Fatal("extraction must not run after a template failure")
	}
}
