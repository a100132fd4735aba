// Package validation implements the admission engine that decides whether
// a candidate feed entry is worth generating an article from. All checks
// are pure: no I/O, no hidden state, deterministic for identical inputs.
package validation

import (
	"strings"
	"unicode"

	"ArticleForge/internal/domain"
)

// Score components, applied in fixed order. Each contributes at most once.
const (
	keywordPoints      = 60
	japanesePoints     = 30
	completenessPoints = 10
)

// Validate scores a candidate against a feed's rules. When the config is
// disabled the candidate bypasses every check with a full score.
func Validate(entry domain.CandidateEntry, cfg domain.ValidationConfig) domain.ValidationResult {
	if !cfg.IsEnabled {
		return domain.ValidationResult{IsValid: true, Score: 100}
	}

	haystack := searchableText(entry)

	keywordOK := CheckKeywords(haystack, cfg.Keywords, cfg.KeywordLogic)
	japaneseOK := !cfg.RequireJapanese || ContainsJapanese(haystack)
	complete := entry.Title != "" && entry.Link != ""

	score := 0
	if keywordOK {
		score += keywordPoints
	}
	if japaneseOK {
		score += japanesePoints
	}
	if complete {
		score += completenessPoints
	}

	var reasons []string
	if !keywordOK {
		reasons = append(reasons, "keyword conditions not met")
	}
	if !japaneseOK {
		reasons = append(reasons, "not a Japanese-language article")
	}
	if !complete {
		reasons = append(reasons, "title or link missing")
	}
	if score < cfg.MinScore {
		reasons = append(reasons, "score below configured minimum")
	}

	return domain.ValidationResult{
		IsValid: keywordOK && japaneseOK && score >= cfg.MinScore,
		Score:   score,
		Reasons: reasons,
	}
}

// CheckKeywords matches the case-folded haystack against the keyword list.
// OR passes on any substring hit; AND requires every keyword to appear
// somewhere, possibly satisfied by different fields. An empty list always
// passes.
func CheckKeywords(haystack string, keywords []string, logic domain.KeywordLogic) bool {
	if len(keywords) == 0 {
		return true
	}

	folded := strings.ToLower(haystack)
	if logic == domain.KeywordLogicAND {
		for _, kw := range keywords {
			if !strings.Contains(folded, strings.ToLower(kw)) {
				return false
			}
		}
		return true
	}

	for _, kw := range keywords {
		if strings.Contains(folded, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ContainsJapanese reports whether the text contains at least one Hiragana,
// Katakana, or CJK Unified Ideograph rune. Pure ASCII/Latin or digits-only
// text fails.
func ContainsJapanese(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}

func searchableText(entry domain.CandidateEntry) string {
	parts := make([]string, 0, 3)
	for _, field := range []string{entry.Title, entry.Description, entry.Content} {
		if field != "" {
			parts = append(parts, field)
		}
	}
	return strings.Join(parts, " ")
}
