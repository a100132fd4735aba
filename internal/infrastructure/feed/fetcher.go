// Package feed adapts RSS/Atom feeds into candidate entries.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
)

// Fetcher pulls a feed over HTTP and converts its items in feed order.
// Item content arrives as HTML more often than not; it is reduced to
// plain text so validation and extraction operate on words, not markup.
type Fetcher struct {
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ ports.FeedFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client into a gofeed parser.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "ArticleForge/1.0"
	return &Fetcher{parser: parser, logger: logger}
}

// Fetch downloads and parses the feed. Transport and parse errors are
// fatal for the whole run, so they surface as provider errors.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]domain.CandidateEntry, error) {
	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, &domain.ProviderError{Step: "feed fetch", Err: fmt.Errorf("parse %s: %w", feedURL, err)}
	}

	entries := make([]domain.CandidateEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toCandidate(item))
	}

	if f.logger != nil {
		f.logger.Debug("feed fetched", "url", feedURL, "items", len(entries))
	}
	return entries, nil
}

func toCandidate(item *gofeed.Item) domain.CandidateEntry {
	entry := domain.CandidateEntry{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Description: StripHTML(item.Description),
		Content:     StripHTML(item.Content),
		PublishedAt: item.PublishedParsed,
	}
	for _, cat := range item.Categories {
		if cat = strings.TrimSpace(cat); cat != "" {
			entry.Categories = append(entry.Categories, cat)
		}
	}
	return entry
}

// StripHTML reduces an HTML fragment to its text content. Non-HTML input
// passes through trimmed.
func StripHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || !strings.Contains(fragment, "<") {
		return fragment
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
