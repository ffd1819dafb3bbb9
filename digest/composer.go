// Package digest formats per-subscriber news digests. Composition is pure:
// delivery belongs to the transport collaborator and retry policy to callers.
package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tindim/tindim/models"
)

const (
	maxArticlesPerTopic     = 3
	maxBulletsPerArticle    = 2
	maxDemoArticlesPerTopic = 2
)

var categoryEmojis = map[models.Category]string{
	models.CategoryTech:          "💻",
	models.CategoryFinance:       "💰",
	models.CategoryCrypto:        "₿",
	models.CategoryAgro:          "🌾",
	models.CategoryBusiness:      "📊",
	models.CategoryPolitics:      "🏛️",
	models.CategorySports:        "⚽",
	models.CategoryEntertainment: "🎬",
	models.CategoryHealth:        "🏥",
	models.CategoryScience:       "🔬",
	models.CategoryWorld:         "🌍",
	models.CategoryGeneral:       "📰",
}

func categoryEmoji(c models.Category) string {
	if emoji, ok := categoryEmojis[c]; ok {
		return emoji
	}
	return "📰"
}

func sentimentIcon(s models.Sentiment) string {
	switch s {
	case models.SentimentPositive:
		return "🟢"
	case models.SentimentNegative:
		return "🔴"
	default:
		return "⚪"
	}
}

// TopicMessage is one formatted outbound message covering a single category.
type TopicMessage struct {
	Category models.Category
	Body     string
}

type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Compose groups the accepted articles by category, restricted to the
// subscriber's interests in their configured order, score-descending within
// each category, and formats one message per topic.
func (c *Composer) Compose(sub *models.Subscriber, articles []models.Article) []TopicMessage {
	byCategory := groupByCategory(articles)

	var messages []TopicMessage
	for _, interest := range sub.Interests {
		topicArticles := byCategory[interest]
		if len(topicArticles) == 0 {
			continue
		}
		messages = append(messages, TopicMessage{
			Category: interest,
			Body:     c.formatTopic(interest, topicArticles, maxArticlesPerTopic),
		})
	}
	return messages
}

// WelcomeMessage opens a digest broadcast for one subscriber.
func (c *Composer) WelcomeMessage(name string, date time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📱 *Tindim* - %s\n\n", date.Format("02/01/2006"))
	fmt.Fprintf(&b, "Good morning, *%s*! ☀️\n\n", name)
	b.WriteString("Here is your personalized news for today. ")
	b.WriteString("Each topic arrives as a separate message for easier reading.\n\n")
	b.WriteString("💬 _Reply to any message to dig deeper!_")
	return b.String()
}

// ComposeDemo builds the single-message trial digest used during onboarding.
func (c *Composer) ComposeDemo(interests []models.Category, articles []models.Article) string {
	byCategory := groupByCategory(articles)

	var b strings.Builder
	b.WriteString("📰 *YOUR PERSONALIZED DIGEST*\n")
	b.WriteString("_Latest headlines_\n\n")

	wrote := false
	for _, interest := range interests {
		topicArticles := byCategory[interest]
		if len(topicArticles) == 0 {
			continue
		}
		wrote = true
		b.WriteString(c.formatTopic(interest, topicArticles, maxDemoArticlesPerTopic))
		b.WriteString("\n")
	}

	if !wrote {
		return ""
	}
	b.WriteString("_🤖 Generated by Tindim_")
	return b.String()
}

func (c *Composer) formatTopic(category models.Category, articles []models.Article, maxArticles int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n", categoryEmoji(category), strings.ToUpper(string(category)))

	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}
	for _, article := range articles {
		headline := article.Title
		var bullets []string
		sentiment := models.SentimentNeutral
		if article.Summary != nil {
			if article.Summary.Headline != "" {
				headline = article.Summary.Headline
			}
			bullets = article.Summary.BulletPoints
			sentiment = article.Summary.Sentiment
		}

		fmt.Fprintf(&b, "%s *%s*\n", sentimentIcon(sentiment), headline)
		if len(bullets) > maxBulletsPerArticle {
			bullets = bullets[:maxBulletsPerArticle]
		}
		for _, bullet := range bullets {
			fmt.Fprintf(&b, "• %s\n", bullet)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// groupByCategory buckets articles preserving input order, then re-sorts each
// bucket by score descending so callers need not pre-sort.
func groupByCategory(articles []models.Article) map[models.Category][]models.Article {
	byCategory := make(map[models.Category][]models.Article)
	for _, article := range articles {
		if article.Summary == nil {
			continue
		}
		category := article.Summary.Category
		byCategory[category] = append(byCategory[category], article)
	}
	for category := range byCategory {
		bucket := byCategory[category]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Score > bucket[j].Score
		})
	}
	return byCategory
}
