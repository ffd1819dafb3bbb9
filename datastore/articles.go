package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/tindim/tindim/models"
)

// psql is the shared statement builder configured for Postgres placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// CreateArticle inserts a newly ingested article. The canonical URL is the
// ingestion key: a conflicting insert is silently skipped and reported via the
// returned bool.
func (r *ArticleRepository) CreateArticle(ctx context.Context, article *models.Article) (bool, error) {
	query := `
		INSERT INTO articles (id, title, url, raw_content, source, outcome, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (url) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		article.ID, article.Title, article.URL, article.RawContent,
		article.Source, models.OutcomePending, article.PublishedAt, article.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert article: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows == 1, nil
}

// ListPending returns articles awaiting summarization, oldest first.
func (r *ArticleRepository) ListPending(ctx context.Context) ([]models.Article, error) {
	query := `
		SELECT id, title, url, raw_content, source, outcome, published_at, created_at
		FROM articles
		WHERE outcome = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, models.OutcomePending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.RawContent, &a.Source, &a.Outcome, &a.PublishedAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending article row: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending article rows: %w", err)
	}
	return articles, nil
}

// StoreResult persists the terminal processing outcome for an article,
// including its summary and score when present.
func (r *ArticleRepository) StoreResult(ctx context.Context, article *models.Article) error {
	var summaryJSON []byte
	if article.Summary != nil {
		var err error
		summaryJSON, err = json.Marshal(article.Summary)
		if err != nil {
			return fmt.Errorf("failed to marshal summary for article %s: %w", article.ID, err)
		}
	}

	query := `
		UPDATE articles
		SET summary_json = $2, score = $3, outcome = $4, processed_at = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		article.ID, summaryJSON, article.Score, article.Outcome, article.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store result for article %s: %w", article.ID, err)
	}
	return nil
}

// ListRecentHeadlines loads the dedup working set: title plus generated
// headline for every article accepted within the window. Loaded once per
// processing batch and discarded afterwards.
func (r *ArticleRepository) ListRecentHeadlines(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT title, COALESCE(summary_json->>'headline', '')
		FROM articles
		WHERE outcome = $1 AND processed_at >= $2
	`
	rows, err := r.db.QueryContext(ctx, query, models.OutcomeAccepted, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent headlines: %w", err)
	}
	defer rows.Close()

	var headlines []string
	for rows.Next() {
		var title, headline string
		if err := rows.Scan(&title, &headline); err != nil {
			return nil, fmt.Errorf("failed to scan headline row: %w", err)
		}
		headlines = append(headlines, title+" "+headline)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating headline rows: %w", err)
	}
	return headlines, nil
}

// AcceptedFilter narrows ListAccepted. Zero values mean "no restriction".
type AcceptedFilter struct {
	Since      time.Time
	Categories []models.Category
	Limit      uint64
}

// ListAccepted returns accepted, scored articles matching the filter, highest
// score first. The filter is assembled dynamically because callers vary in
// which constraints they need (digest composition, demo digests, deep dives).
func (r *ArticleRepository) ListAccepted(ctx context.Context, filter AcceptedFilter) ([]models.Article, error) {
	builder := psql.
		Select("id", "title", "url", "source", "summary_json", "score", "outcome", "published_at", "created_at", "processed_at").
		From("articles").
		Where(sq.Eq{"outcome": models.OutcomeAccepted}).
		OrderBy("score DESC", "processed_at DESC")

	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"processed_at": filter.Since})
	}
	if len(filter.Categories) > 0 {
		cats := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			cats[i] = string(c)
		}
		builder = builder.Where("summary_json->>'category' = ANY(?)", pq.StringArray(cats))
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build accepted-articles query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accepted articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		var summaryJSON []byte
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.Source, &summaryJSON, &a.Score, &a.Outcome, &a.PublishedAt, &a.CreatedAt, &a.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan accepted article row: %w", err)
		}
		if len(summaryJSON) > 0 {
			var summary models.Summary
			if err := json.Unmarshal(summaryJSON, &summary); err != nil {
				return nil, fmt.Errorf("failed to decode summary for article %s: %w", a.ID, err)
			}
			a.Summary = &summary
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accepted article rows: %w", err)
	}
	return articles, nil
}
