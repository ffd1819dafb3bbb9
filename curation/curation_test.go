package curation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindim/tindim/models"
)

func longText(n int) string {
	return strings.Repeat("news body text ", n/15+1)[:n]
}

func TestPreFilterRejectsExcludedTopics(t *testing.T) {
	f := NewPreFilter()
	tests := []struct {
		title string
	}{
		{"Powerball jackpot reaches record high this week"},
		{"Your weekly horoscope says big changes ahead"},
		{"You won't believe what this startup did next"},
		{"Beloved actor dies aged 87 after long career"},
	}
	for _, tt := range tests {
		_, reason, ok := f.Evaluate(tt.title, longText(300))
		assert.False(t, ok, "title %q must be rejected", tt.title)
		assert.Equal(t, RejectExcludedTopic, reason)
	}
}

func TestPreFilterRejectsExcludedContent(t *testing.T) {
	f := NewPreFilter()
	body := longText(200) + " The winning numbers were announced last night. " + longText(100)

	_, reason, ok := f.Evaluate("A perfectly reasonable news title", body)

	assert.False(t, ok)
	assert.Equal(t, RejectExcludedContent, reason)
}

func TestPreFilterLengthGates(t *testing.T) {
	f := NewPreFilter()

	_, reason, ok := f.Evaluate("Too short", longText(300))
	assert.False(t, ok)
	assert.Equal(t, RejectTitleTooShort, reason)

	_, reason, ok = f.Evaluate("A perfectly reasonable news title", "thin content")
	assert.False(t, ok)
	assert.Equal(t, RejectBodyTooShort, reason)
}

func TestPreFilterStripsMarkup(t *testing.T) {
	f := NewPreFilter()
	raw := "<div><p>Central   bank holds\nrates</p><script>alert(1)</script></div>"

	assert.Equal(t, "Central bank holds rates", f.StripMarkup(raw))
}

func TestPreFilterAcceptsCleanCandidate(t *testing.T) {
	f := NewPreFilter()

	stripped, reason, ok := f.Evaluate("Central bank holds rates steady again", "<p>"+longText(300)+"</p>")

	require.True(t, ok)
	assert.Empty(t, string(reason))
	assert.NotContains(t, stripped, "<p>")
}

func TestSimilarityRatios(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("same headline", "same headline"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	// 2*3/(4+4) lands exactly on the threshold.
	assert.InDelta(t, 0.75, Similarity("abcd", "abcx"), 1e-9)
}

func TestWindowThresholdIsInclusive(t *testing.T) {
	w := NewWindow([]string{"abcd"})

	assert.True(t, w.IsDuplicate("abcx"), "ratio of exactly 0.75 counts as duplicate")
	assert.False(t, w.IsDuplicate("zzzz"))
}

func TestWindowNormalizesCaseAndWhitespace(t *testing.T) {
	w := NewWindow([]string{"Central  Bank Holds RATES"})

	assert.True(t, w.IsDuplicate("central bank holds rates"))
}

func TestWindowSeesEarlierBatchEntries(t *testing.T) {
	w := NewWindow(nil)

	assert.False(t, w.IsDuplicate("markets rally on earnings"))
	w.Add("markets rally on earnings")
	assert.True(t, w.IsDuplicate("markets rally on earnings"))
}

func fullSummary() *models.Summary {
	return &models.Summary{
		Headline:     "Central bank holds rates steady",
		BulletPoints: []string{"one", "two", "three"},
		Sentiment:    models.SentimentNeutral,
		Category:     models.CategoryFinance,
	}
}

func TestScorerWeights(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	scorer := NewScorer([]string{"Reuters"})

	tests := []struct {
		name  string
		in    ScoreInput
		want  int
		tweak func(*ScoreInput)
	}{
		{
			name: "everything bonused",
			in: ScoreInput{
				Summary:     fullSummary(),
				Source:      "reuters",
				PublishedAt: now.Add(-1 * time.Hour),
				BodyLength:  1200,
			},
			want: 95,
		},
		{
			name: "recent but not fresh",
			in: ScoreInput{
				Summary:     fullSummary(),
				Source:      "unknown wire",
				PublishedAt: now.Add(-8 * time.Hour),
				BodyLength:  1200,
			},
			want: 75,
		},
		{
			name: "stale short body with thin summary",
			in: ScoreInput{
				Summary:     &models.Summary{BulletPoints: []string{"one", "two"}},
				Source:      "unknown wire",
				PublishedAt: now.Add(-48 * time.Hour),
				BodyLength:  400,
			},
			want: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scorer.Score(tt.in, now))
		})
	}
}

func TestScorerPremiumSourceMatchIsCaseInsensitive(t *testing.T) {
	now := time.Now()
	scorer := NewScorer([]string{" Reuters "})

	with := scorer.Score(ScoreInput{Source: "REUTERS", PublishedAt: now.Add(-24 * time.Hour), BodyLength: 900}, now)
	without := scorer.Score(ScoreInput{Source: "other", PublishedAt: now.Add(-24 * time.Hour), BodyLength: 900}, now)

	assert.Equal(t, 15, with-without)
}

func TestValidatorReasonCodes(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(*models.Summary)
		reason string
	}{
		{"missing headline", func(s *models.Summary) { s.Headline = "  " }, ReasonMissingHeadline},
		{"short headline", func(s *models.Summary) { s.Headline = "Too short" }, ReasonHeadlineTooShort},
		{"too few bullets", func(s *models.Summary) { s.BulletPoints = []string{"one"} }, ReasonTooFewBullets},
		{"bad sentiment", func(s *models.Summary) { s.Sentiment = "euphoric" }, ReasonInvalidSentiment},
		{"bad category", func(s *models.Summary) { s.Category = "gossip" }, ReasonInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := fullSummary()
			tt.mutate(summary)
			reason, ok := v.Validate(summary)
			assert.False(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}

	reason, ok := v.Validate(fullSummary())
	assert.True(t, ok)
	assert.Empty(t, reason)
}
