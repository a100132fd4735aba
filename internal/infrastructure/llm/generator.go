// Package llm drives fact extraction and article generation through an
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
	"ArticleForge/internal/template"
)

// Config defines how to contact the generation API.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// Generator implements fact extraction and article generation over one
// chat endpoint. Provider failures are fatal for the run and carry the
// step that produced them.
type Generator struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.FactExtractor = (*Generator)(nil)
var _ ports.ArticleGenerator = (*Generator)(nil)

// NewGenerator builds a client from configuration.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

const extractionInstruction = `Extract the event facts from the article below.
Respond with a single JSON object: {"work_name": "", "venue": "", "period_start": "", "period_end": "", "price": ""}.
Use empty strings for facts the article does not state. Dates use YYYY-MM-DD.`

// ExtractFacts asks the model for the semantic facts behind a candidate.
// The merged template's placeholder hints steer the extraction.
func (g *Generator) ExtractFacts(ctx context.Context, entry domain.CandidateEntry, tmpl template.Merged) (domain.ExtractedFacts, error) {
	system := extractionInstruction
	if hints := placeholderHints(tmpl); hints != "" {
		system += "\n" + hints
	}

	user := fmt.Sprintf("Title: %s\nLink: %s\n\n%s", entry.Title, entry.Link, entry.Content)
	if strings.TrimSpace(entry.Content) == "" {
		user = fmt.Sprintf("Title: %s\nLink: %s\n\n%s", entry.Title, entry.Link, entry.Description)
	}

	content, err := g.complete(ctx, "fact extraction", system, user)
	if err != nil {
		return domain.ExtractedFacts{}, err
	}

	var raw struct {
		WorkName    string `json:"work_name"`
		Venue       string `json:"venue"`
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
		Price       string `json:"price"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &raw); err != nil {
		return domain.ExtractedFacts{}, &domain.ProviderError{
			Step: "fact extraction",
			Err:  fmt.Errorf("unparseable extraction response: %w", err),
		}
	}

	return domain.ExtractedFacts{
		WorkName:    raw.WorkName,
		Venue:       raw.Venue,
		PeriodStart: raw.PeriodStart,
		PeriodEnd:   raw.PeriodEnd,
		Price:       raw.Price,
		SourceURL:   entry.Link,
	}, nil
}

// Generate produces the article fields for a request whose prompt was
// already resolved by the template system.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedArticle, error) {
	user, err := json.Marshal(map[string]any{
		"title":        req.Entry.Title,
		"link":         req.Entry.Link,
		"content":      req.Entry.Content,
		"facts":        req.Facts,
		"targetLength": req.Options.TargetLength,
		"tone":         req.Options.Tone,
		"language":     req.Options.Language,
		"keywordHints": req.Options.KeywordHints,
	})
	if err != nil {
		return domain.GeneratedArticle{}, fmt.Errorf("marshal generation input: %w", err)
	}

	content, err := g.complete(ctx, "generation", req.Prompt, string(user))
	if err != nil {
		return domain.GeneratedArticle{}, err
	}

	var raw struct {
		Title      string   `json:"title"`
		Body       string   `json:"body"`
		Excerpt    string   `json:"excerpt"`
		Tags       []string `json:"tags"`
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(content)), &raw); err != nil {
		return domain.GeneratedArticle{}, &domain.ProviderError{
			Step: "generation",
			Err:  fmt.Errorf("unparseable generation response: %w", err),
		}
	}
	if raw.Title == "" || raw.Body == "" {
		return domain.GeneratedArticle{}, &domain.ProviderError{
			Step: "generation",
			Err:  fmt.Errorf("generation response missing title or body"),
		}
	}

	return domain.GeneratedArticle{
		Title:       raw.Title,
		Body:        raw.Body,
		Excerpt:     raw.Excerpt,
		Tags:        raw.Tags,
		Categories:  raw.Categories,
		WordCount:   len(strings.Fields(raw.Body)),
		Model:       g.model,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// complete posts one chat completion and returns the assistant content.
func (g *Generator) complete(ctx context.Context, step, system, user string) (string, error) {
	if g.apiKey == "" || g.endpoint == "" || g.model == "" {
		return "", &domain.ProviderError{Step: step, Err: fmt.Errorf("generator misconfigured")}
	}

	body, err := json.Marshal(map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", &domain.ProviderError{Step: step, Err: err}
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= http.StatusBadRequest {
		excerpt := strings.TrimSpace(string(payload))
		if len(excerpt) > 512 {
			excerpt = excerpt[:512]
		}
		return "", &domain.ProviderError{
			Step: step,
			Err:  fmt.Errorf("provider returned %s: %s", resp.Status, excerpt),
		}
	}

	content, err := assistantContent(payload)
	if err != nil {
		return "", &domain.ProviderError{Step: step, Err: err}
	}
	return content, nil
}

// assistantContent tolerates the two response shapes seen in the wild:
// OpenAI-style choices and an Ollama-style top-level response string.
func assistantContent(payload []byte) (string, error) {
	var parsed struct {
		Response string `json:"response"`
		Choices  []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Response != "" {
		return parsed.Response, nil
	}
	for _, choice := range parsed.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content, nil
		}
		if choice.Text != "" {
			return choice.Text, nil
		}
	}
	return "", fmt.Errorf("response carries no content")
}

// extractJSONObject trims any prose the model wraps around the JSON body.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}

func placeholderHints(tmpl template.Merged) string {
	names := make([]string, 0, len(tmpl.Required))
	for name := range tmpl.Required {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		if hint := tmpl.Required[name].Hint; hint != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", name, hint))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Extraction hints:\n" + strings.Join(lines, "\n")
}
