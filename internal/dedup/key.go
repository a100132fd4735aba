// Package dedup derives the canonical identity used to avoid publishing
// the same real-world event twice. Keys come from extracted semantic
// facts, never from feed mechanics like the RSS link or title, because
// multiple feeds announce the same event with different wording.
package dedup

import (
	"strings"

	"ArticleForge/internal/domain"
)

const fieldSeparator = "|"

// ComputeCanonicalKey builds the stable dedup key from normalized facts.
// The field order is fixed (work, venue, period start), so identical facts
// always produce identical keys regardless of extraction order.
func ComputeCanonicalKey(facts domain.ExtractedFacts) string {
	parts := []string{
		normalizeField(facts.WorkName),
		normalizeField(facts.Venue),
		normalizeField(facts.PeriodStart),
	}
	return strings.Join(parts, fieldSeparator)
}

// NormalizeFacts returns a copy with every key-relevant field normalized,
// for callers that want to display what the key was derived from.
func NormalizeFacts(facts domain.ExtractedFacts) domain.ExtractedFacts {
	facts.WorkName = normalizeField(facts.WorkName)
	facts.Venue = normalizeField(facts.Venue)
	facts.PeriodStart = normalizeField(facts.PeriodStart)
	facts.PeriodEnd = normalizeField(facts.PeriodEnd)
	return facts
}

// normalizeField trims, collapses internal whitespace runs to a single
// space, and case-folds, so RSS wording differences do not split keys.
func normalizeField(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
