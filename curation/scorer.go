package curation

import (
	"strings"
	"time"

	"github.com/tindim/tindim/models"
)

const (
	baseScore = 50

	bulletBonus      = 10 // 3 or more bullet points
	freshBonus       = 15 // published < 6h ago
	recentBonus      = 10 // published < 12h ago
	sentimentBonus   = 5  // sentiment tag present
	premiumBonus     = 15 // source on the premium allow-list
	shortBodyPenalty = 20 // stripped body < 500 characters

	bulletBonusCount = 3
	freshWindow      = 6 * time.Hour
	recentWindow     = 12 * time.Hour
	minFullBodyLen   = 500
)

// ScoreInput is everything the scorer looks at for one accepted article.
type ScoreInput struct {
	Summary     *models.Summary
	Source      string
	PublishedAt time.Time
	BodyLength  int // markup-stripped body length
}

// Scorer computes the deterministic additive relevance score used to order
// articles within a category. The score never gates inclusion; gating belongs
// to the validator and dedup stages.
type Scorer struct {
	premiumSources map[string]bool
}

// NewScorer builds a scorer with the fixed premium-source allow-list.
func NewScorer(premiumSources []string) *Scorer {
	allowed := make(map[string]bool, len(premiumSources))
	for _, s := range premiumSources {
		allowed[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return &Scorer{premiumSources: allowed}
}

// Score returns the relevance score for the article at the given instant.
func (s *Scorer) Score(in ScoreInput, now time.Time) int {
	score := baseScore

	if in.Summary != nil && len(in.Summary.BulletPoints) >= bulletBonusCount {
		score += bulletBonus
	}

	age := now.Sub(in.PublishedAt)
	if age < freshWindow {
		score += freshBonus
	} else if age < recentWindow {
		score += recentBonus
	}

	if in.Summary != nil && in.Summary.Sentiment != "" {
		score += sentimentBonus
	}

	if s.premiumSources[strings.ToLower(strings.TrimSpace(in.Source))] {
		score += premiumBonus
	}

	if in.BodyLength < minFullBodyLen {
		score -= shortBodyPenalty
	}

	return score
}
