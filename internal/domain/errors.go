package domain

import (
	"errors"
	"fmt"
)

// ErrNoCandidates reports an empty feed or an out-of-range start index.
var ErrNoCandidates = errors.New("no candidates available")

// DuplicateKeyError signals that a canonical key already has a generated
// article. It is the one recoverable condition: the orchestrator advances
// to the next candidate instead of failing the run.
type DuplicateKeyError struct {
	Key         string
	ExistingRef string
}

func (e *DuplicateKeyError) Error() string {
	if e.ExistingRef == "" {
		return fmt.Sprintf("article already generated for key %q", e.Key)
	}
	return fmt.Sprintf("article already generated for key %q (existing: %s)", e.Key, e.ExistingRef)
}

// IsDuplicate reports whether err is (or wraps) a DuplicateKeyError.
func IsDuplicate(err error) bool {
	var dup *DuplicateKeyError
	return errors.As(err, &dup)
}

// ProviderError wraps a failure from an external collaborator (feed fetch,
// extraction, generation, publish). Fatal for the run. Partial carries any
// already-generated content so the caller can salvage it.
type ProviderError struct {
	Step    string
	Err     error
	Partial *GeneratedArticle
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
