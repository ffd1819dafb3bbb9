package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tindim/tindim/models"
)

const subscriberColumns = `
	id, phone_number, name, plan, interests, onboarding_state, onboarding_data,
	profile, tone, daily_message_count, daily_ai_count, last_reset_at,
	preferred_times, is_active, nps_score, last_message_at, last_feedback_at,
	last_nps_at, created_at
`

type SubscriberRepository struct {
	db *sql.DB
}

func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) CreateSubscriber(ctx context.Context, sub *models.Subscriber) error {
	payload, err := json.Marshal(sub.Onboarding)
	if err != nil {
		return fmt.Errorf("failed to marshal onboarding payload: %w", err)
	}

	query := `
		INSERT INTO subscribers (
			id, phone_number, name, plan, interests, onboarding_state, onboarding_data,
			daily_message_count, daily_ai_count, last_reset_at, preferred_times, is_active, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		sub.ID, sub.PhoneNumber, sub.Name, sub.Plan,
		pq.Array(categoryStrings(sub.Interests)), sub.OnboardingState, payload,
		sub.LastResetAt, pq.Array(sub.PreferredTimes), sub.Active, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscriber: %w", err)
	}
	return nil
}

// GetByPhone retrieves a subscriber by contact key. Returns sql.ErrNoRows
// wrapped when no subscriber exists.
func (r *SubscriberRepository) GetByPhone(ctx context.Context, phoneNumber string) (*models.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE phone_number = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, phoneNumber))
}

func (r *SubscriberRepository) GetByID(ctx context.Context, id string) (*models.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// UpdateOnboarding persists a state-machine transition result: the new state,
// its payload, and any profile fields the transition settled.
func (r *SubscriberRepository) UpdateOnboarding(ctx context.Context, sub *models.Subscriber) error {
	payload, err := json.Marshal(sub.Onboarding)
	if err != nil {
		return fmt.Errorf("failed to marshal onboarding payload: %w", err)
	}

	query := `
		UPDATE subscribers
		SET onboarding_state = $2, onboarding_data = $3, interests = $4,
		    profile = $5, tone = $6, plan = $7, preferred_times = $8, is_active = $9
		WHERE id = $1
	`
	_, err = r.db.ExecContext(ctx, query,
		sub.ID, sub.OnboardingState, payload,
		pq.Array(categoryStrings(sub.Interests)), sub.Profile, sub.Tone,
		sub.Plan, pq.Array(sub.PreferredTimes), sub.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update onboarding for subscriber %s: %w", sub.ID, err)
	}
	return nil
}

// TryIncrementCounter performs the rate-limiter's conditional update: the
// counter is incremented only while still below the cap, in a single
// statement, so concurrent submissions cannot both pass a full limit. The
// returned bool reports whether the increment was admitted.
func (r *SubscriberRepository) TryIncrementCounter(ctx context.Context, subscriberID, counterColumn string, cap int) (bool, error) {
	var query string
	switch counterColumn {
	case "daily_message_count":
		query = `
			UPDATE subscribers
			SET daily_message_count = daily_message_count + 1, last_message_at = NOW()
			WHERE id = $1 AND daily_message_count < $2
		`
	case "daily_ai_count":
		query = `
			UPDATE subscribers
			SET daily_ai_count = daily_ai_count + 1, last_message_at = NOW()
			WHERE id = $1 AND daily_ai_count < $2
		`
	default:
		return false, fmt.Errorf("unknown counter column %q", counterColumn)
	}

	res, err := r.db.ExecContext(ctx, query, subscriberID, cap)
	if err != nil {
		return false, fmt.Errorf("failed to increment %s for subscriber %s: %w", counterColumn, subscriberID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read increment result: %w", err)
	}
	return rows == 1, nil
}

// ResetDailyCounters zeroes both daily counters for every subscriber whose
// last reset precedes the current calendar day. Subscribers already reset
// today are untouched, which makes a second run the same day a no-op.
func (r *SubscriberRepository) ResetDailyCounters(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE subscribers
		SET daily_message_count = 0, daily_ai_count = 0, last_reset_at = $1
		WHERE last_reset_at < date_trunc('day', $1::timestamptz)
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily counters: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reset result: %w", err)
	}
	return rows, nil
}

// ListActiveBySlot returns active subscribers whose preferred delivery times
// include the given "HH:MM" slot.
func (r *SubscriberRepository) ListActiveBySlot(ctx context.Context, slot string) ([]models.Subscriber, error) {
	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE is_active = TRUE AND onboarding_state = $1 AND $2 = ANY(preferred_times)
	`
	return r.scanMany(ctx, query, models.StateActive, slot)
}

// ListActive returns all active subscribers eligible for delivery.
func (r *SubscriberRepository) ListActive(ctx context.Context) ([]models.Subscriber, error) {
	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE is_active = TRUE AND onboarding_state = $1
	`
	return r.scanMany(ctx, query, models.StateActive)
}

// ListInactive returns active subscribers with no inbound message since the
// cutoff and no feedback probe since the probe cutoff.
func (r *SubscriberRepository) ListInactive(ctx context.Context, messageCutoff, probeCutoff time.Time) ([]models.Subscriber, error) {
	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE is_active = TRUE
		  AND last_message_at IS NOT NULL AND last_message_at < $1
		  AND (last_feedback_at IS NULL OR last_feedback_at < $2)
	`
	return r.scanMany(ctx, query, messageCutoff, probeCutoff)
}

// ListForNPS returns active subscribers who have not been surveyed since the
// cutoff.
func (r *SubscriberRepository) ListForNPS(ctx context.Context, cutoff time.Time) ([]models.Subscriber, error) {
	query := `
		SELECT ` + subscriberColumns + `
		FROM subscribers
		WHERE is_active = TRUE AND (last_nps_at IS NULL OR last_nps_at < $1)
	`
	return r.scanMany(ctx, query, cutoff)
}

// MarkFeedbackSent stamps the inactivity-probe timestamp.
func (r *SubscriberRepository) MarkFeedbackSent(ctx context.Context, subscriberID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET last_feedback_at = $2 WHERE id = $1`, subscriberID, at)
	if err != nil {
		return fmt.Errorf("failed to mark feedback sent for subscriber %s: %w", subscriberID, err)
	}
	return nil
}

// MarkNPSSent stamps the NPS-survey timestamp.
func (r *SubscriberRepository) MarkNPSSent(ctx context.Context, subscriberID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET last_nps_at = $2 WHERE id = $1`, subscriberID, at)
	if err != nil {
		return fmt.Errorf("failed to mark NPS sent for subscriber %s: %w", subscriberID, err)
	}
	return nil
}

// SetNPSScore records the subscriber's latest NPS answer.
func (r *SubscriberRepository) SetNPSScore(ctx context.Context, subscriberID string, score int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscribers SET nps_score = $2 WHERE id = $1`, subscriberID, score)
	if err != nil {
		return fmt.Errorf("failed to set NPS score for subscriber %s: %w", subscriberID, err)
	}
	return nil
}

// UsageStats is the operator-facing usage snapshot.
type UsageStats struct {
	ActiveSubscribers int `json:"active_subscribers"`
	MessagesToday     int `json:"messages_today"`
	AICallsToday      int `json:"ai_calls_today"`
}

// GetUsageStats aggregates today's usage across all active subscribers.
func (r *SubscriberRepository) GetUsageStats(ctx context.Context) (*UsageStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(daily_message_count), 0),
		       COALESCE(SUM(daily_ai_count), 0)
		FROM subscribers
		WHERE is_active = TRUE AND onboarding_state = $1
	`
	var stats UsageStats
	err := r.db.QueryRowContext(ctx, query, models.StateActive).
		Scan(&stats.ActiveSubscribers, &stats.MessagesToday, &stats.AICallsToday)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage stats: %w", err)
	}
	return &stats, nil
}

func (r *SubscriberRepository) scanOne(row *sql.Row) (*models.Subscriber, error) {
	sub, err := scanSubscriber(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("subscriber not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return sub, nil
}

func (r *SubscriberRepository) scanMany(ctx context.Context, query string, args ...any) ([]models.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber row: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber rows: %w", err)
	}
	return subs, nil
}

func scanSubscriber(scan func(...any) error) (*models.Subscriber, error) {
	var sub models.Subscriber
	var interests pq.StringArray
	var preferredTimes pq.StringArray
	var payload []byte
	var profile, tone sql.NullString

	err := scan(
		&sub.ID, &sub.PhoneNumber, &sub.Name, &sub.Plan, &interests,
		&sub.OnboardingState, &payload, &profile, &tone,
		&sub.DailyMessages, &sub.DailyAICalls, &sub.LastResetAt,
		&preferredTimes, &sub.Active, &sub.NPSScore,
		&sub.LastMessageAt, &sub.LastFeedbackAt, &sub.LastNPSAt, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Interests = toCategories(interests)
	sub.PreferredTimes = []string(preferredTimes)
	sub.Profile = models.ProfileTag(profile.String)
	sub.Tone = models.Tone(tone.String)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &sub.Onboarding); err != nil {
			return nil, fmt.Errorf("failed to decode onboarding payload: %w", err)
		}
	}
	return &sub, nil
}

func categoryStrings(categories []models.Category) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}

func toCategories(values []string) []models.Category {
	out := make([]models.Category, len(values))
	for i, v := range values {
		out[i] = models.Category(v)
	}
	return out
}
