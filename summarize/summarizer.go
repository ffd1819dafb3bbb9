// Package summarize wraps the external summarization collaborator: it turns
// raw article text into a structured summary or a typed failure.
package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/tindim/tindim/models"
)

// ErrSafetyBlocked marks a response the collaborator refused on safety
// grounds. Terminal: the article is never retried.
var ErrSafetyBlocked = errors.New("summarizer refused content on safety grounds")

// ErrInvalidResponse marks a structurally invalid collaborator response
// (missing choices, empty content). Terminal.
var ErrInvalidResponse = errors.New("summarizer returned a structurally invalid response")

// ParseError marks a response whose content did not decode into the expected
// summary shape. Eligible for a bounded number of re-attempts before becoming
// terminal.
type ParseError struct {
	cause error
}

// NewParseError wraps a decoding failure as a retryable parse error.
func NewParseError(cause error) *ParseError {
	return &ParseError{cause: cause}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse summarizer output: %v", e.cause)
}

func (e *ParseError) Unwrap() error {
	return e.cause
}

// Summarizer is the collaborator interface the ingestion pipeline depends on.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) (*models.Summary, error)
}
