package models

import (
	"strings"
	"time"
)

// Sentiment is the tone tag the summarizer assigns to an article.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// IsValid reports whether s is one of the three known sentiment tags.
func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Category is the interest bucket an article is filed under.
type Category string

const (
	CategoryTech          Category = "tech"
	CategoryFinance       Category = "finance"
	CategoryCrypto        Category = "crypto"
	CategoryAgro          Category = "agro"
	CategoryBusiness      Category = "business"
	CategoryPolitics      Category = "politics"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryScience       Category = "science"
	CategoryWorld         Category = "world"
	CategoryGeneral       Category = "general"
)

// AllCategories lists every valid category, in display order.
var AllCategories = []Category{
	CategoryTech, CategoryFinance, CategoryCrypto, CategoryAgro,
	CategoryBusiness, CategoryPolitics, CategorySports, CategoryEntertainment,
	CategoryHealth, CategoryScience, CategoryWorld, CategoryGeneral,
}

// IsValid reports whether c belongs to the fixed category set.
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Outcome is the terminal processing tag on an article. Articles are never
// deleted; they end up with exactly one of these.
type Outcome string

const (
	OutcomePending         Outcome = "pending"
	OutcomeAccepted        Outcome = "accepted"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeSafetyBlocked   Outcome = "safety_blocked"
	OutcomeInvalidResponse Outcome = "invalid_response"
	OutcomeParseError      Outcome = "parse_error"
)

const qualityFailedPrefix = "quality_check_failed:"

// QualityCheckFailed builds the outcome tag for a summary that failed
// validation, embedding the machine-readable reason.
func QualityCheckFailed(reason string) Outcome {
	return Outcome(qualityFailedPrefix + reason)
}

// IsQualityFailure reports whether o is a quality rejection and, if so,
// returns the embedded reason.
func (o Outcome) IsQualityFailure() (string, bool) {
	if strings.HasPrefix(string(o), qualityFailedPrefix) {
		return strings.TrimPrefix(string(o), qualityFailedPrefix), true
	}
	return "", false
}

// Summary is the structured result the summarization collaborator produces
// from raw article content.
type Summary struct {
	Headline     string    `json:"headline"`
	BulletPoints []string  `json:"bullet_points"`
	Sentiment    Sentiment `json:"sentiment"`
	Category     Category  `json:"category"`
}

type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"` // canonical URL, unique ingestion key
	RawContent  string     `json:"-"`
	Source      string     `json:"source"`
	Summary     *Summary   `json:"summary,omitempty"`
	Score       int        `json:"score"`
	Outcome     Outcome    `json:"outcome"`
	PublishedAt time.Time  `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// HeadlineKey is the string the deduplication engine compares: title plus
// generated headline, lower-cased.
func (a *Article) HeadlineKey() string {
	headline := ""
	if a.Summary != nil {
		headline = a.Summary.Headline
	}
	return strings.ToLower(strings.TrimSpace(a.Title + " " + headline))
}
