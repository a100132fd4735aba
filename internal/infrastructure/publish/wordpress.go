// Package publish contains the publish-target adapters. Both targets
// return the generated article inside the error on failure so partially
// produced content is never silently lost.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
)

// WordPressConfig wires a WordPress REST endpoint with application-
// password credentials.
type WordPressConfig struct {
	BaseURL     string `yaml:"baseUrl"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"appPassword"`
	Status      string `yaml:"status"`
}

// WordPressPublisher creates posts through the WP REST API.
type WordPressPublisher struct {
	cfg    WordPressConfig
	client *http.Client
}

var _ ports.Publisher = (*WordPressPublisher)(nil)

// NewWordPressPublisher builds the adapter; Status defaults to draft so a
// misconfigured run never auto-publishes publicly.
func NewWordPressPublisher(cfg WordPressConfig) *WordPressPublisher {
	if cfg.Status == "" {
		cfg.Status = "draft"
	}
	return &WordPressPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Publish creates the post and returns its id.
func (p *WordPressPublisher) Publish(ctx context.Context, article domain.GeneratedArticle, facts domain.ExtractedFacts) (domain.PublishResult, error) {
	if p.cfg.BaseURL == "" || p.cfg.Username == "" || p.cfg.AppPassword == "" {
		return domain.PublishResult{}, publishErr(article, fmt.Errorf("wordpress publisher misconfigured"))
	}

	body, err := json.Marshal(map[string]any{
		"title":   article.Title,
		"content": article.Body,
		"excerpt": article.Excerpt,
		"status":  p.cfg.Status,
	})
	if err != nil {
		return domain.PublishResult{}, fmt.Errorf("marshal post payload: %w", err)
	}

	endpoint := strings.TrimSuffix(p.cfg.BaseURL, "/") + "/wp-json/wp/v2/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.PublishResult{}, fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(p.cfg.Username, p.cfg.AppPassword)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.PublishResult{}, publishErr(article, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		return domain.PublishResult{}, publishErr(article, fmt.Errorf("wordpress returned %s: %s", resp.Status, truncate(payload)))
	}

	var created struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(payload, &created); err != nil {
		return domain.PublishResult{}, publishErr(article, fmt.Errorf("decode post response: %w", err))
	}
	if created.ID == 0 {
		return domain.PublishResult{}, publishErr(article, fmt.Errorf("wordpress response carries no post id"))
	}

	return domain.PublishResult{
		Target: domain.PublishTargetWordPress,
		PostID: strconv.Itoa(created.ID),
	}, nil
}

func publishErr(article domain.GeneratedArticle, err error) error {
	return &domain.ProviderError{Step: "publish", Err: err, Partial: &article}
}

func truncate(payload []byte) string {
	excerpt := strings.TrimSpace(string(payload))
	if len(excerpt) > 512 {
		excerpt = excerpt[:512]
	}
	return excerpt
}
