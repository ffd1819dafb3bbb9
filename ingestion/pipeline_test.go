package ingestion

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindim/tindim/curation"
	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/summarize"
)

type memStore struct {
	articles []models.Article
	history  []string
}

func (m *memStore) CreateArticle(_ context.Context, article *models.Article) (bool, error) {
	for _, existing := range m.articles {
		if existing.URL == article.URL {
			return false, nil
		}
	}
	m.articles = append(m.articles, *article)
	return true, nil
}

func (m *memStore) ListPending(_ context.Context) ([]models.Article, error) {
	var pending []models.Article
	for _, a := range m.articles {
		if a.Outcome == models.OutcomePending {
			pending = append(pending, a)
		}
	}
	return pending, nil
}

func (m *memStore) StoreResult(_ context.Context, article *models.Article) error {
	for i := range m.articles {
		if m.articles[i].ID == article.ID {
			m.articles[i] = *article
			return nil
		}
	}
	return fmt.Errorf("article %s not found", article.ID)
}

func (m *memStore) ListRecentHeadlines(_ context.Context, _ time.Time) ([]string, error) {
	return m.history, nil
}

func (m *memStore) byTitle(title string) *models.Article {
	for i := range m.articles {
		if m.articles[i].Title == title {
			return &m.articles[i]
		}
	}
	return nil
}

type stubSource struct {
	candidates []Candidate
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(_ context.Context) ([]Candidate, error) {
	return s.candidates, nil
}

// scriptedSummarizer answers per title, optionally failing a set number of
// times first.
type scriptedSummarizer struct {
	summaries map[string]*models.Summary
	failures  map[string][]error
	calls     map[string]int
}

func (s *scriptedSummarizer) Summarize(_ context.Context, title, _ string) (*models.Summary, error) {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	call := s.calls[title]
	s.calls[title]++

	if queue := s.failures[title]; call < len(queue) {
		return nil, queue[call]
	}
	if summary, ok := s.summaries[title]; ok {
		return summary, nil
	}
	return nil, summarize.ErrInvalidResponse
}

func newPipeline(store *memStore, summarizer summarize.Summarizer, sources ...Source) *Pipeline {
	return NewPipeline(
		sources,
		curation.NewPreFilter(),
		curation.NewValidator(),
		curation.NewScorer([]string{"Reuters"}),
		summarizer,
		store,
	)
}

func longBody(topic string) string {
	return strings.Repeat("Detailed reporting about "+topic+" with plenty of substance. ", 12)
}

func summaryFor(headline string, category models.Category) *models.Summary {
	return &models.Summary{
		Headline:     headline,
		BulletPoints: []string{"first key point", "second key point", "third key point"},
		Sentiment:    models.SentimentNeutral,
		Category:     category,
	}
}

func TestIngestRejectsExcludedTopicsBeforeStorage(t *testing.T) {
	store := &memStore{}
	source := &stubSource{candidates: []Candidate{
		{
			Title:      "Lottery results for the weekly mega draw announced",
			URL:        "https://news.example/lottery",
			RawContent: longBody("lottery winning numbers and the jackpot"),
			Source:     "Example",
		},
		{
			Title:      "Central bank announces new interest rate policy",
			URL:        "https://news.example/rates",
			RawContent: longBody("monetary policy"),
			Source:     "Example",
		},
	}}
	pipeline := newPipeline(store, &scriptedSummarizer{}, source)

	stored, err := pipeline.Ingest(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	require.Len(t, store.articles, 1)
	assert.Equal(t, "Central bank announces new interest rate policy", store.articles[0].Title)
	assert.Equal(t, models.OutcomePending, store.articles[0].Outcome)
}

func TestIngestSkipsKnownURLs(t *testing.T) {
	store := &memStore{}
	candidate := Candidate{
		Title:      "Central bank announces new interest rate policy",
		URL:        "https://news.example/rates",
		RawContent: longBody("monetary policy"),
		Source:     "Example",
	}
	pipeline := newPipeline(store, &scriptedSummarizer{}, &stubSource{candidates: []Candidate{candidate, candidate}})

	stored, err := pipeline.Ingest(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestProcessPendingBatchWithNearDuplicates(t *testing.T) {
	titles := []string{
		"Central bank raises interest rates to fight persistent inflation",
		"Central bank raises interest rates to combat persistent inflation",
		"New quantum processor breaks computation records in the lab",
		"New quantum processor breaks computing records in the lab",
		"National team wins the continental championship final",
	}
	store := &memStore{}
	summarizer := &scriptedSummarizer{summaries: map[string]*models.Summary{}}
	var candidates []Candidate
	for i, title := range titles {
		candidates = append(candidates, Candidate{
			Title:       title,
			URL:         fmt.Sprintf("https://news.example/%d", i),
			RawContent:  longBody(title),
			Source:      "Reuters",
			PublishedAt: time.Now().Add(-time.Hour),
		})
		category := models.CategoryFinance
		if i >= 2 {
			category = models.CategoryTech
		}
		if i == 4 {
			category = models.CategorySports
		}
		summarizer.summaries[title] = summaryFor(title, category)
	}
	pipeline := newPipeline(store, summarizer, &stubSource{candidates: candidates})

	require.NoError(t, pipeline.Run(context.Background()))

	accepted := 0
	for _, article := range store.articles {
		switch article.Title {
		case titles[1], titles[3]:
			assert.Equal(t, models.OutcomeDuplicate, article.Outcome, article.Title)
		default:
			assert.Equal(t, models.OutcomeAccepted, article.Outcome, article.Title)
			assert.GreaterOrEqual(t, article.Score, 50, article.Title)
			accepted++
		}
	}
	assert.Equal(t, 3, accepted)
}

func TestProcessPendingDeduplicatesAgainstHistory(t *testing.T) {
	title := "Central bank raises interest rates to fight persistent inflation"
	store := &memStore{
		history: []string{title + " " + title},
	}
	store.articles = append(store.articles, models.Article{
		ID: "a1", Title: title, URL: "https://news.example/1",
		RawContent: longBody("rates"), Source: "Example",
		Outcome: models.OutcomePending, PublishedAt: time.Now(),
	})
	summarizer := &scriptedSummarizer{summaries: map[string]*models.Summary{
		title: summaryFor(title, models.CategoryFinance),
	}}
	pipeline := newPipeline(store, summarizer)

	_, err := pipeline.ProcessPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDuplicate, store.byTitle(title).Outcome)
}

func TestParseFailuresAreRetriedThenSucceed(t *testing.T) {
	title := "New quantum processor breaks computation records in the lab"
	store := &memStore{}
	store.articles = append(store.articles, models.Article{
		ID: "a1", Title: title, URL: "https://news.example/1",
		RawContent: longBody("quantum"), Source: "Example",
		Outcome: models.OutcomePending, PublishedAt: time.Now(),
	})
	summarizer := &scriptedSummarizer{
		summaries: map[string]*models.Summary{title: summaryFor(title, models.CategoryTech)},
		failures: map[string][]error{title: {
			summarize.NewParseError(fmt.Errorf("bad json")),
			summarize.NewParseError(fmt.Errorf("bad json")),
		}},
	}
	pipeline := newPipeline(store, summarizer)

	accepted, err := pipeline.ProcessPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 3, summarizer.calls[title])
	assert.Equal(t, models.OutcomeAccepted, store.byTitle(title).Outcome)
}

func TestParseFailuresBecomeTerminalAfterRetries(t *testing.T) {
	title := "New quantum processor breaks computation records in the lab"
	store := &memStore{}
	store.articles = append(store.articles, models.Article{
		ID: "a1", Title: title, URL: "https://news.example/1",
		RawContent: longBody("quantum"), Source: "Example",
		Outcome: models.OutcomePending, PublishedAt: time.Now(),
	})
	parseErr := summarize.NewParseError(fmt.Errorf("bad json"))
	summarizer := &scriptedSummarizer{
		failures: map[string][]error{title: {parseErr, parseErr, parseErr}},
	}
	pipeline := newPipeline(store, summarizer)

	_, err := pipeline.ProcessPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, summarizer.calls[title])
	assert.Equal(t, models.OutcomeParseError, store.byTitle(title).Outcome)
}

func TestSafetyBlockIsTerminalWithoutRetry(t *testing.T) {
	title := "Contested report on regional conflict sparks debate online"
	store := &memStore{}
	store.articles = append(store.articles, models.Article{
		ID: "a1", Title: title, URL: "https://news.example/1",
		RawContent: longBody("conflict"), Source: "Example",
		Outcome: models.OutcomePending, PublishedAt: time.Now(),
	})
	summarizer := &scriptedSummarizer{
		failures: map[string][]error{title: {summarize.ErrSafetyBlocked}},
	}
	pipeline := newPipeline(store, summarizer)

	_, err := pipeline.ProcessPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summarizer.calls[title])
	assert.Equal(t, models.OutcomeSafetyBlocked, store.byTitle(title).Outcome)
}

func TestQualityFailureKeepsReason(t *testing.T) {
	title := "Central bank announces new interest rate policy today"
	store := &memStore{}
	store.articles = append(store.articles, models.Article{
		ID: "a1", Title: title, URL: "https://news.example/1",
		RawContent: longBody("rates"), Source: "Example",
		Outcome: models.OutcomePending, PublishedAt: time.Now(),
	})
	summarizer := &scriptedSummarizer{summaries: map[string]*models.Summary{
		title: {
			Headline:     "too short",
			BulletPoints: []string{"first key point", "second key point"},
			Sentiment:    models.SentimentNeutral,
			Category:     models.CategoryFinance,
		},
	}}
	pipeline := newPipeline(store, summarizer)

	_, err := pipeline.ProcessPending(context.Background())

	require.NoError(t, err)
	reason, ok := store.byTitle(title).Outcome.IsQualityFailure()
	require.True(t, ok)
	assert.NotEmpty(t, reason)
}

func TestProcessingStampsProcessedAt(t *testing.T) {
	accepted := "Central bank raises interest rates to fight persistent inflation"
	rejected := "New quantum processor breaks computation records in the lab"
	store := &memStore{}
	store.articles = append(store.articles,
		models.Article{
			ID: "a1", Title: accepted, URL: "https://news.example/1",
			RawContent: longBody("rates"), Source: "Example",
			Outcome: models.OutcomePending, PublishedAt: time.Now(),
		},
		models.Article{
			ID: "a2", Title: rejected, URL: "https://news.example/2",
			RawContent: longBody("quantum"), Source: "Example",
			Outcome: models.OutcomePending, PublishedAt: time.Now(),
		},
	)
	summarizer := &scriptedSummarizer{
		summaries: map[string]*models.Summary{
			accepted: summaryFor(accepted, models.CategoryFinance),
		},
		failures: map[string][]error{rejected: {summarize.ErrSafetyBlocked}},
	}
	pipeline := newPipeline(store, summarizer)

	_, err := pipeline.ProcessPending(context.Background())

	require.NoError(t, err)
	require.NotNil(t, store.byTitle(accepted).ProcessedAt, "accepted article must carry a processed_at timestamp")
	assert.WithinDuration(t, time.Now(), *store.byTitle(accepted).ProcessedAt, time.Minute)
	require.NotNil(t, store.byTitle(rejected).ProcessedAt, "terminal rejections are stamped too")
}

func TestTransientFailureLeavesArticlePending(t *testing.T) {
	title := "Central bank announces new interest rate policy today"
	store := &memStore{}
	store.articles = append(store.articles, models.Article{
		ID: "a1", Title: title, URL: "https://news.example/1",
		RawContent: longBody("rates"), Source: "Example",
		Outcome: models.OutcomePending, PublishedAt: time.Now(),
	})
	summarizer := &scriptedSummarizer{
		failures: map[string][]error{title: {fmt.Errorf("connection timed out")}},
	}
	pipeline := newPipeline(store, summarizer)

	_, err := pipeline.ProcessPending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomePending, store.byTitle(title).Outcome)
	assert.Nil(t, store.byTitle(title).ProcessedAt)
}
