package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tindim/tindim/models"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetActive returns the subscriber's current open conversation, or nil when
// none exists.
func (r *ConversationRepository) GetActive(ctx context.Context, subscriberID string) (*models.Conversation, error) {
	query := `
		SELECT id, subscriber_id, article_id, message_count, context, is_active, last_message_at, created_at
		FROM conversations
		WHERE subscriber_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`
	var conv models.Conversation
	var contextJSON []byte
	err := r.db.QueryRowContext(ctx, query, subscriberID).Scan(
		&conv.ID, &conv.SubscriberID, &conv.ArticleID, &conv.MessageCount,
		&contextJSON, &conv.Active, &conv.LastMessageAt, &conv.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active conversation: %w", err)
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &conv.Context); err != nil {
			return nil, fmt.Errorf("failed to decode conversation context: %w", err)
		}
	}
	return &conv, nil
}

func (r *ConversationRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	contextJSON, err := json.Marshal(conv.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation context: %w", err)
	}

	query := `
		INSERT INTO conversations (id, subscriber_id, article_id, message_count, context, is_active, last_message_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		conv.ID, conv.SubscriberID, conv.ArticleID, conv.MessageCount,
		contextJSON, conv.Active, conv.LastMessageAt, conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// Close marks the conversation inactive. Used on explicit close and when the
// message cap is reached.
func (r *ConversationRepository) Close(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET is_active = FALSE WHERE id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to close conversation %s: %w", conversationID, err)
	}
	return nil
}

// AppendMessage inserts a message and bumps the conversation's counter and
// activity timestamp in one transaction, keeping the count consistent with
// the append-only message log.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count + 1, last_message_at = $2 WHERE id = $1`,
		msg.ConversationID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to bump conversation %s: %w", msg.ConversationID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message append: %w", err)
	}
	return nil
}

// ListRecentMessages returns the last n messages of a conversation in
// chronological order.
func (r *ConversationRepository) ListRecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM (
			SELECT id, conversation_id, role, content, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}
