package models

import "time"

// MaxConversationMessages is the message cap after which a conversation is
// closed and the next inbound message starts a fresh one.
const MaxConversationMessages = 10

// MessageRole identifies who authored a conversation message.
type MessageRole string

const (
	RoleSubscriber MessageRole = "subscriber"
	RoleAssistant  MessageRole = "assistant"
)

// Conversation is one bounded chat thread between a subscriber and the
// assistant, optionally anchored to a single article.
type Conversation struct {
	ID            string            `json:"id"`
	SubscriberID  string            `json:"subscriber_id"`
	ArticleID     *string           `json:"article_id,omitempty"`
	MessageCount  int               `json:"message_count"`
	Context       map[string]string `json:"context,omitempty"`
	Active        bool              `json:"is_active"`
	LastMessageAt time.Time         `json:"last_message_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

// AtCap reports whether the conversation has used up its message budget.
func (c *Conversation) AtCap() bool {
	return c.MessageCount >= MaxConversationMessages
}

// Message is a single append-only entry in a conversation.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}
