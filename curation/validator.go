package curation

import (
	"strings"

	"github.com/tindim/tindim/models"
)

const (
	// minHeadlineLength is the enforced gate. The style guide asks for 25+
	// characters, but that stays a non-blocking target.
	minHeadlineLength = 20

	// minBulletPoints is the enforced gate; the style target of 3 bullets of
	// 50+ characters each is deliberately not enforced here.
	minBulletPoints = 2
)

// Validation reason codes, embedded in the article outcome tag.
const (
	ReasonMissingHeadline  = "missing_headline"
	ReasonHeadlineTooShort = "headline_too_short"
	ReasonTooFewBullets    = "too_few_bullets"
	ReasonInvalidSentiment = "invalid_sentiment"
	ReasonInvalidCategory  = "invalid_category"
)

// Validator rejects malformed or low-quality summaries coming back from the
// summarization collaborator. Failing articles are retained for audit but
// excluded from scoring and delivery.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a structured summary. It returns the failure reason code
// and whether the summary passed.
func (v *Validator) Validate(summary *models.Summary) (string, bool) {
	headline := strings.TrimSpace(summary.Headline)
	if headline == "" {
		return ReasonMissingHeadline, false
	}
	if len(headline) < minHeadlineLength {
		return ReasonHeadlineTooShort, false
	}
	if len(summary.BulletPoints) < minBulletPoints {
		return ReasonTooFewBullets, false
	}
	if !summary.Sentiment.IsValid() {
		return ReasonInvalidSentiment, false
	}
	if !summary.Category.IsValid() {
		return ReasonInvalidCategory, false
	}
	return "", true
}
