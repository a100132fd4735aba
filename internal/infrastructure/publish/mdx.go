package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
)

// MDXConfig targets a GitHub-style contents API: the article lands as an
// MDX file on a fresh branch with a pull request against BaseBranch.
type MDXConfig struct {
	APIBaseURL string `yaml:"apiBaseUrl"`
	Owner      string `yaml:"owner"`
	Repo       string `yaml:"repo"`
	Token      string `yaml:"token"`
	BaseBranch string `yaml:"baseBranch"`
	ContentDir string `yaml:"contentDir"`
}

// MDXPublisher writes the article as an MDX file and opens a PR.
type MDXPublisher struct {
	cfg    MDXConfig
	client *http.Client
	now    func() time.Time
}

var _ ports.Publisher = (*MDXPublisher)(nil)

// NewMDXPublisher builds the adapter with defaults for branch and dir.
func NewMDXPublisher(cfg MDXConfig) *MDXPublisher {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.github.com"
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	if cfg.ContentDir == "" {
		cfg.ContentDir = "content/articles"
	}
	return &MDXPublisher{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
}

// Publish creates branch, file, and pull request, in that order.
func (p *MDXPublisher) Publish(ctx context.Context, article domain.GeneratedArticle, facts domain.ExtractedFacts) (domain.PublishResult, error) {
	if p.cfg.Owner == "" || p.cfg.Repo == "" || p.cfg.Token == "" {
		return domain.PublishResult{}, publishErr(article, fmt.Errorf("mdx publisher misconfigured"))
	}

	stamp := p.now().UTC().Format("20060102-150405")
	branch := "article/" + stamp
	filePath := fmt.Sprintf("%s/%s.mdx", strings.TrimSuffix(p.cfg.ContentDir, "/"), stamp)

	baseSHA, err := p.baseCommitSHA(ctx)
	if err != nil {
		return domain.PublishResult{}, publishErr(article, err)
	}
	if err := p.createBranch(ctx, branch, baseSHA); err != nil {
		return domain.PublishResult{}, publishErr(article, err)
	}
	if err := p.putFile(ctx, branch, filePath, renderMDX(article, facts)); err != nil {
		return domain.PublishResult{}, publishErr(article, err)
	}
	prRef, err := p.openPullRequest(ctx, branch, article.Title)
	if err != nil {
		return domain.PublishResult{}, publishErr(article, err)
	}

	return domain.PublishResult{
		Target:   domain.PublishTargetMDX,
		FilePath: filePath,
		PRRef:    prRef,
	}, nil
}

func (p *MDXPublisher) baseCommitSHA(ctx context.Context) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", p.cfg.Owner, p.cfg.Repo, p.cfg.BaseBranch)
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := p.call(ctx, http.MethodGet, path, nil, &ref); err != nil {
		return "", fmt.Errorf("resolve base branch: %w", err)
	}
	if ref.Object.SHA == "" {
		return "", fmt.Errorf("base branch %s has no commit", p.cfg.BaseBranch)
	}
	return ref.Object.SHA, nil
}

func (p *MDXPublisher) createBranch(ctx context.Context, branch, sha string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs", p.cfg.Owner, p.cfg.Repo)
	payload := map[string]string{"ref": "refs/heads/" + branch, "sha": sha}
	if err := p.call(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("create branch %s: %w", branch, err)
	}
	return nil
}

func (p *MDXPublisher) putFile(ctx context.Context, branch, filePath, content string) error {
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", p.cfg.Owner, p.cfg.Repo, filePath)
	payload := map[string]string{
		"message": "Add generated article",
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}
	if err := p.call(ctx, http.MethodPut, path, payload, nil); err != nil {
		return fmt.Errorf("put file %s: %w", filePath, err)
	}
	return nil
}

func (p *MDXPublisher) openPullRequest(ctx context.Context, branch, title string) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls", p.cfg.Owner, p.cfg.Repo)
	payload := map[string]string{
		"title": title,
		"head":  branch,
		"base":  p.cfg.BaseBranch,
	}
	var pr struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	if err := p.call(ctx, http.MethodPost, path, payload, &pr); err != nil {
		return "", fmt.Errorf("open pull request: %w", err)
	}
	if pr.HTMLURL != "" {
		return pr.HTMLURL, nil
	}
	return fmt.Sprintf("#%d", pr.Number), nil
}

func (p *MDXPublisher) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.APIBaseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, truncate(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// renderMDX writes frontmatter plus body. Facts land in the frontmatter
// so the static site can render the event box without re-parsing prose.
func renderMDX(article domain.GeneratedArticle, facts domain.ExtractedFacts) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", article.Title)
	fmt.Fprintf(&b, "excerpt: %q\n", article.Excerpt)
	if facts.WorkName != "" {
		fmt.Fprintf(&b, "work: %q\n", facts.WorkName)
	}
	if facts.Venue != "" {
		fmt.Fprintf(&b, "venue: %q\n", facts.Venue)
	}
	if facts.PeriodStart != "" {
		fmt.Fprintf(&b, "periodStart: %q\n", facts.PeriodStart)
	}
	if facts.PeriodEnd != "" {
		fmt.Fprintf(&b, "periodEnd: %q\n", facts.PeriodEnd)
	}
	if len(article.Tags) > 0 {
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(article.Tags, ", "))
	}
	fmt.Fprintf(&b, "generatedAt: %s\n", article.GeneratedAt.Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.WriteString(article.Body)
	b.WriteString("\n")
	return b.String()
}
