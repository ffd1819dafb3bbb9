package curation

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// RejectReason is the machine-readable code a pre-filter rejection carries.
type RejectReason string

const (
	RejectExcludedTopic   RejectReason = "excluded_topic"
	RejectExcludedContent RejectReason = "excluded_content"
	RejectTitleTooShort   RejectReason = "title_too_short"
	RejectBodyTooShort    RejectReason = "body_too_short"
)

const (
	minTitleLength = 15
	minBodyLength  = 200
)

// Title patterns for topics the product never summarizes. These run before
// any paid summarization call.
var excludedTopicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(lottery|lotto|powerball|mega millions|jackpot|raffle)\b`),
	regexp.MustCompile(`(?i)\b(horoscope|astrology|zodiac|tarot)\b`),
	regexp.MustCompile(`(?i)(you won'?t believe|what happens next|this one (trick|weird)|top \d+ (reasons|things) )`),
	regexp.MustCompile(`(?i)\b(obituary|obituaries|dies aged \d+|passes away at \d+)\b`),
}

// Body patterns for chance-game filler that slips past title checks.
var excludedContentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(winning numbers|drawn numbers|numbers drawn)\b`),
	regexp.MustCompile(`(?i)\b(betting odds|odds of winning|the odds are \d)\b`),
	regexp.MustCompile(`(?i)\bjackpot (of|worth|reaches) `),
}

// PreFilter rejects low-value candidate articles before they reach the
// summarization collaborator. Rejected candidates are never persisted.
type PreFilter struct {
	stripPolicy *bluemonday.Policy
}

func NewPreFilter() *PreFilter {
	return &PreFilter{
		stripPolicy: bluemonday.StripTagsPolicy(),
	}
}

// Evaluate checks a raw candidate. It returns the markup-stripped body, the
// rejection reason when the candidate is rejected, and whether it passed.
func (f *PreFilter) Evaluate(title, rawContent string) (string, RejectReason, bool) {
	stripped := f.StripMarkup(rawContent)

	for _, pattern := range excludedTopicPatterns {
		if pattern.MatchString(title) {
			return stripped, RejectExcludedTopic, false
		}
	}
	for _, pattern := range excludedContentPatterns {
		if pattern.MatchString(stripped) {
			return stripped, RejectExcludedContent, false
		}
	}
	if len(strings.TrimSpace(title)) < minTitleLength {
		return stripped, RejectTitleTooShort, false
	}
	if len(stripped) < minBodyLength {
		return stripped, RejectBodyTooShort, false
	}

	return stripped, "", true
}

// StripMarkup reduces HTML-ish content to plain text with collapsed
// whitespace.
func (f *PreFilter) StripMarkup(rawContent string) string {
	stripped := f.stripPolicy.Sanitize(rawContent)
	return strings.Join(strings.Fields(stripped), " ")
}
