package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindim/tindim/models"
)

func article(title string, category models.Category, score int, bullets ...string) models.Article {
	return models.Article{
		Title: title,
		Score: score,
		Summary: &models.Summary{
			Headline:     title,
			BulletPoints: bullets,
			Sentiment:    models.SentimentNeutral,
			Category:     category,
		},
	}
}

func TestComposeRestrictsToInterests(t *testing.T) {
	composer := NewComposer()
	sub := &models.Subscriber{
		Interests: []models.Category{models.CategoryTech, models.CategoryFinance},
	}
	articles := []models.Article{
		article("Chip launch", models.CategoryTech, 70, "point one"),
		article("Rate decision", models.CategoryFinance, 65, "point one"),
		article("Cup final", models.CategorySports, 90, "point one"),
	}

	messages := composer.Compose(sub, articles)

	require.Len(t, messages, 2)
	assert.Equal(t, models.CategoryTech, messages[0].Category)
	assert.Equal(t, models.CategoryFinance, messages[1].Category)
	for _, msg := range messages {
		assert.NotContains(t, msg.Body, "Cup final")
	}
}

func TestComposeOrdersByScoreAndCapsArticles(t *testing.T) {
	composer := NewComposer()
	sub := &models.Subscriber{Interests: []models.Category{models.CategoryTech}}
	articles := []models.Article{
		article("third", models.CategoryTech, 55),
		article("first", models.CategoryTech, 90),
		article("fourth", models.CategoryTech, 50),
		article("second", models.CategoryTech, 80),
	}

	messages := composer.Compose(sub, articles)

	require.Len(t, messages, 1)
	body := messages[0].Body
	assert.Contains(t, body, "first")
	assert.Contains(t, body, "second")
	assert.Contains(t, body, "third")
	assert.NotContains(t, body, "fourth")
	assert.Less(t, strings.Index(body, "first"), strings.Index(body, "second"))
	assert.Less(t, strings.Index(body, "second"), strings.Index(body, "third"))
}

func TestComposeCapsBulletsPerArticle(t *testing.T) {
	composer := NewComposer()
	sub := &models.Subscriber{Interests: []models.Category{models.CategoryCrypto}}
	articles := []models.Article{
		article("ETF inflows", models.CategoryCrypto, 75, "one", "two", "three", "four"),
	}

	messages := composer.Compose(sub, articles)

	require.Len(t, messages, 1)
	assert.Equal(t, 2, strings.Count(messages[0].Body, "• "))
}

func TestComposeSkipsEmptyTopics(t *testing.T) {
	composer := NewComposer()
	sub := &models.Subscriber{
		Interests: []models.Category{models.CategoryAgro, models.CategoryHealth},
	}
	articles := []models.Article{
		article("Harvest outlook", models.CategoryAgro, 60, "point"),
	}

	messages := composer.Compose(sub, articles)

	require.Len(t, messages, 1)
	assert.Equal(t, models.CategoryAgro, messages[0].Category)
}

func TestComposeSentimentIcons(t *testing.T) {
	composer := NewComposer()
	sub := &models.Subscriber{Interests: []models.Category{models.CategoryFinance}}
	up := article("Markets rally", models.CategoryFinance, 80, "point")
	up.Summary.Sentiment = models.SentimentPositive
	down := article("Bank fails", models.CategoryFinance, 70, "point")
	down.Summary.Sentiment = models.SentimentNegative

	messages := composer.Compose(sub, []models.Article{up, down})

	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Body, "🟢 *Markets rally*")
	assert.Contains(t, messages[0].Body, "🔴 *Bank fails*")
}

func TestWelcomeMessage(t *testing.T) {
	composer := NewComposer()
	date := time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC)

	msg := composer.WelcomeMessage("Ana", date)

	assert.Contains(t, msg, "28/08/2026")
	assert.Contains(t, msg, "*Ana*")
}

func TestComposeDemoCapsAtTwoPerTopic(t *testing.T) {
	composer := NewComposer()
	interests := []models.Category{models.CategoryTech}
	articles := []models.Article{
		article("first", models.CategoryTech, 90, "point"),
		article("second", models.CategoryTech, 80, "point"),
		article("third", models.CategoryTech, 70, "point"),
	}

	msg := composer.ComposeDemo(interests, articles)

	assert.Contains(t, msg, "first")
	assert.Contains(t, msg, "second")
	assert.NotContains(t, msg, "third")
}

func TestComposeDemoEmptyWhenNothingMatches(t *testing.T) {
	composer := NewComposer()

	msg := composer.ComposeDemo([]models.Category{models.CategorySports}, nil)

	assert.Empty(t, msg)
}
