// Package ingestion runs the article intake cycle: pull candidates from the
// configured sources, pre-filter before any paid summarization call, then
// summarize, validate, deduplicate, and score the pending backlog.
package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tindim/tindim/curation"
	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/summarize"
)

const (
	dedupLookback   = 24 * time.Hour
	maxParseRetries = 2 // re-attempts after the first parse failure
)

// Candidate is a raw article as delivered by a source, before any filtering.
type Candidate struct {
	Title       string
	URL         string
	RawContent  string
	Source      string
	PublishedAt time.Time
}

// Source yields candidate articles. Feed fetching and parsing live behind
// this interface.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Candidate, error)
}

// ArticleStore is the persistence surface the pipeline drives.
type ArticleStore interface {
	CreateArticle(ctx context.Context, article *models.Article) (bool, error)
	ListPending(ctx context.Context) ([]models.Article, error)
	StoreResult(ctx context.Context, article *models.Article) error
	ListRecentHeadlines(ctx context.Context, since time.Time) ([]string, error)
}

type Pipeline struct {
	sources    []Source
	prefilter  *curation.PreFilter
	validator  *curation.Validator
	scorer     *curation.Scorer
	summarizer summarize.Summarizer
	articles   ArticleStore
}

func NewPipeline(
	sources []Source,
	prefilter *curation.PreFilter,
	validator *curation.Validator,
	scorer *curation.Scorer,
	summarizer summarize.Summarizer,
	articles ArticleStore,
) *Pipeline {
	return &Pipeline{
		sources:    sources,
		prefilter:  prefilter,
		validator:  validator,
		scorer:     scorer,
		summarizer: summarizer,
		articles:   articles,
	}
}

// Run executes one full cycle: intake then processing.
func (p *Pipeline) Run(ctx context.Context) error {
	if _, err := p.Ingest(ctx); err != nil {
		return err
	}
	_, err := p.ProcessPending(ctx)
	return err
}

// Ingest pulls candidates from every source, drops the ones the pre-filter
// rejects, and persists the rest as pending. Returns how many articles were
// newly stored; URL collisions are silently skipped.
func (p *Pipeline) Ingest(ctx context.Context) (int, error) {
	stored := 0
	for _, source := range p.sources {
		candidates, err := source.Fetch(ctx)
		if err != nil {
			log.Printf("WARN (Ingestion): source %s failed: %v", source.Name(), err)
			continue
		}

		for _, candidate := range candidates {
			stripped, reason, ok := p.prefilter.Evaluate(candidate.Title, candidate.RawContent)
			if !ok {
				log.Printf("INFO (Ingestion): rejected %q from %s (%s)", candidate.Title, source.Name(), reason)
				continue
			}

			article := &models.Article{
				ID:          uuid.NewString(),
				Title:       candidate.Title,
				URL:         candidate.URL,
				RawContent:  stripped,
				Source:      candidate.Source,
				Outcome:     models.OutcomePending,
				PublishedAt: candidate.PublishedAt,
				CreatedAt:   time.Now(),
			}
			inserted, err := p.articles.CreateArticle(ctx, article)
			if err != nil {
				log.Printf("ERROR (Ingestion): failed to store %q: %v", candidate.Title, err)
				continue
			}
			if inserted {
				stored++
			}
		}
	}
	log.Printf("INFO (Ingestion): stored %d new articles", stored)
	return stored, nil
}

// ProcessPending summarizes, validates, deduplicates, and scores the pending
// backlog as one batch. The dedup window is rebuilt from the trailing day's
// headlines at batch start; articles accepted mid-batch join it immediately
// so batch-internal duplicates are caught too.
func (p *Pipeline) ProcessPending(ctx context.Context) (int, error) {
	pending, err := p.articles.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	recent, err := p.articles.ListRecentHeadlines(ctx, time.Now().Add(-dedupLookback))
	if err != nil {
		return 0, err
	}
	window := curation.NewWindow(recent)

	accepted := 0
	for i := range pending {
		article := &pending[i]
		p.process(ctx, article, window)
		if article.Outcome == models.OutcomePending {
			// Transient summarizer failure. Leave it for the next batch.
			continue
		}
		now := time.Now()
		article.ProcessedAt = &now
		if err := p.articles.StoreResult(ctx, article); err != nil {
			log.Printf("ERROR (Ingestion): failed to store result for %s: %v", article.ID, err)
			continue
		}
		if article.Outcome == models.OutcomeAccepted {
			accepted++
		}
	}
	log.Printf("INFO (Ingestion): processed %d pending articles, %d accepted", len(pending), accepted)
	return accepted, nil
}

// process runs one article through the curation stages, setting its summary,
// outcome, and score in place.
func (p *Pipeline) process(ctx context.Context, article *models.Article, window *curation.Window) {
	summary, err := p.summarizeWithRetry(ctx, article)
	if err != nil {
		article.Outcome = outcomeForSummaryError(err)
		if article.Outcome == models.OutcomePending {
			log.Printf("WARN (Ingestion): transient summarizer failure for %s: %v", article.ID, err)
		} else {
			log.Printf("WARN (Ingestion): summarization of %s ended %s: %v", article.ID, article.Outcome, err)
		}
		return
	}
	article.Summary = summary

	if reason, ok := p.validator.Validate(summary); !ok {
		article.Outcome = models.QualityCheckFailed(reason)
		return
	}

	key := article.HeadlineKey()
	if window.IsDuplicate(key) {
		article.Outcome = models.OutcomeDuplicate
		return
	}
	window.Add(key)

	article.Score = p.scorer.Score(curation.ScoreInput{
		Summary:     summary,
		Source:      article.Source,
		PublishedAt: article.PublishedAt,
		BodyLength:  len(article.RawContent),
	}, time.Now())
	article.Outcome = models.OutcomeAccepted
}

// summarizeWithRetry re-attempts only parse failures, a bounded number of
// times. Safety blocks and structurally invalid responses are terminal on
// first sight.
func (p *Pipeline) summarizeWithRetry(ctx context.Context, article *models.Article) (*models.Summary, error) {
	var lastErr error
	for attempt := 0; attempt <= maxParseRetries; attempt++ {
		summary, err := p.summarizer.Summarize(ctx, article.Title, article.RawContent)
		if err == nil {
			return summary, nil
		}
		lastErr = err

		var parseErr *summarize.ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		log.Printf("WARN (Ingestion): parse failure for %s (attempt %d): %v", article.ID, attempt+1, err)
	}
	return nil, lastErr
}

// outcomeForSummaryError maps typed summarizer failures to their terminal
// outcome. Anything untyped (timeouts, connection errors) keeps the article
// pending.
func outcomeForSummaryError(err error) models.Outcome {
	var parseErr *summarize.ParseError
	switch {
	case errors.Is(err, summarize.ErrSafetyBlocked):
		return models.OutcomeSafetyBlocked
	case errors.Is(err, summarize.ErrInvalidResponse):
		return models.OutcomeInvalidResponse
	case errors.As(err, &parseErr):
		return models.OutcomeParseError
	default:
		return models.OutcomePending
	}
}
