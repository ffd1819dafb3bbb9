// Package chat routes inbound messages: rate limiting first, then the
// onboarding machine for leads and configuration, the feedback collector for
// survey replies, and the news assistant for everything else.
package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tindim/tindim/datastore"
	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/ratelimit"
	"github.com/tindim/tindim/transport"
)

const (
	historyDepth  = 10
	newsLookback  = 24 * time.Hour
	newsLimit     = 5
	fallbackReply = "😅 I had trouble thinking that one through. Try asking again in a moment!"
)

// SubscriberStore is the subscriber persistence the router needs.
type SubscriberStore interface {
	GetByPhone(ctx context.Context, phoneNumber string) (*models.Subscriber, error)
	CreateSubscriber(ctx context.Context, sub *models.Subscriber) error
}

// ConversationStore is the bounded-thread persistence for assistant chat.
type ConversationStore interface {
	GetActive(ctx context.Context, subscriberID string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	Close(ctx context.Context, conversationID string) error
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListRecentMessages(ctx context.Context, conversationID string, n int) ([]models.Message, error)
}

// ArticleLister supplies news context for assistant replies.
type ArticleLister interface {
	ListAccepted(ctx context.Context, filter datastore.AcceptedFilter) ([]models.Article, error)
}

// OnboardingHandler processes messages for subscribers still in setup or in
// the configuration sub-flow.
type OnboardingHandler interface {
	Handle(ctx context.Context, sub *models.Subscriber, input string) error
}

// FeedbackCollector gets first refusal on messages from active subscribers,
// claiming survey answers and bug reports. It reports whether it consumed the
// message.
type FeedbackCollector interface {
	HandleResponse(ctx context.Context, sub *models.Subscriber, input string) (bool, error)
}

type Service struct {
	subscribers   SubscriberStore
	conversations ConversationStore
	articles      ArticleLister
	limiter       *ratelimit.Limiter
	onboarding    OnboardingHandler
	feedback      FeedbackCollector
	assistant     Assistant
	sender        transport.Sender
}

func NewService(
	subscribers SubscriberStore,
	conversations ConversationStore,
	articles ArticleLister,
	limiter *ratelimit.Limiter,
	onboarding OnboardingHandler,
	feedback FeedbackCollector,
	assistant Assistant,
	sender transport.Sender,
) *Service {
	return &Service{
		subscribers:   subscribers,
		conversations: conversations,
		articles:      articles,
		limiter:       limiter,
		onboarding:    onboarding,
		feedback:      feedback,
		assistant:     assistant,
		sender:        sender,
	}
}

// HandleInbound processes one message from the chat webhook.
func (s *Service) HandleInbound(ctx context.Context, phoneNumber, name, input string) error {
	sub, err := s.getOrCreate(ctx, phoneNumber, name)
	if err != nil {
		return err
	}

	decision, err := s.limiter.Allow(ctx, sub, ratelimit.KindMessage)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		log.Printf("INFO (Chat): subscriber %s hit the daily message cap", sub.ID)
		s.send(ctx, phoneNumber, decision.Deflection)
		return nil
	}

	if s.routesToOnboarding(sub, input) {
		return s.onboarding.Handle(ctx, sub, input)
	}

	handled, err := s.feedback.HandleResponse(ctx, sub, input)
	if err != nil {
		log.Printf("WARN (Chat): feedback collector failed for subscriber %s: %v", sub.ID, err)
	}
	if handled {
		return nil
	}

	return s.converse(ctx, sub, input)
}

// Subscriber looks up a subscriber by contact key for external triggers
// (billing webhooks, admin endpoints).
func (s *Service) Subscriber(ctx context.Context, phoneNumber string) (*models.Subscriber, error) {
	return s.subscribers.GetByPhone(ctx, phoneNumber)
}

func (s *Service) getOrCreate(ctx context.Context, phoneNumber, name string) (*models.Subscriber, error) {
	sub, err := s.subscribers.GetByPhone(ctx, phoneNumber)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if name == "" {
		name = "Lead"
	}
	now := time.Now()
	sub = &models.Subscriber{
		ID:              uuid.NewString(),
		PhoneNumber:     phoneNumber,
		Name:            name,
		Plan:            models.PlanBase,
		OnboardingState: models.StateNewLead,
		LastResetAt:     now,
		PreferredTimes:  models.DefaultPreferredTimes,
		CreatedAt:       now,
	}
	if err := s.subscribers.CreateSubscriber(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create lead for %s: %w", phoneNumber, err)
	}
	log.Printf("INFO (Chat): new lead created for %s", phoneNumber)
	return sub, nil
}

// routesToOnboarding sends the message to the state machine whenever the
// subscriber is not fully active, or when an active subscriber uses a
// configuration keyword.
func (s *Service) routesToOnboarding(sub *models.Subscriber, input string) bool {
	if sub.OnboardingState != models.StateActive {
		return true
	}
	switch normalize(input) {
	case "settings", "config", "configure", "preferences", "reset":
		return true
	}
	return false
}

func (s *Service) converse(ctx context.Context, sub *models.Subscriber, input string) error {
	decision, err := s.limiter.Allow(ctx, sub, ratelimit.KindAI)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		log.Printf("INFO (Chat): subscriber %s hit the daily AI cap", sub.ID)
		s.send(ctx, sub.PhoneNumber, decision.Deflection)
		return nil
	}

	conv, err := s.openConversation(ctx, sub)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.conversations.AppendMessage(ctx, &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleSubscriber,
		Content:        input,
		CreatedAt:      now,
	}); err != nil {
		return err
	}

	history, err := s.conversations.ListRecentMessages(ctx, conv.ID, historyDepth)
	if err != nil {
		log.Printf("WARN (Chat): failed to load history for conversation %s: %v", conv.ID, err)
	}
	news, err := s.articles.ListAccepted(ctx, datastore.AcceptedFilter{
		Since:      now.Add(-newsLookback),
		Categories: sub.Interests,
		Limit:      newsLimit,
	})
	if err != nil {
		log.Printf("WARN (Chat): failed to load news context: %v", err)
	}

	reply, err := s.assistant.Reply(ctx, sub, history, news, input)
	if err != nil {
		log.Printf("ERROR (Chat): assistant failed for subscriber %s: %v", sub.ID, err)
		s.send(ctx, sub.PhoneNumber, fallbackReply)
		return nil
	}

	if err := s.conversations.AppendMessage(ctx, &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        reply,
		CreatedAt:      time.Now(),
	}); err != nil {
		log.Printf("WARN (Chat): failed to record assistant reply: %v", err)
	}

	s.send(ctx, sub.PhoneNumber, reply)
	return nil
}

// openConversation returns the subscriber's active thread, rotating to a
// fresh one when the cap is reached.
func (s *Service) openConversation(ctx context.Context, sub *models.Subscriber) (*models.Conversation, error) {
	conv, err := s.conversations.GetActive(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if conv != nil && conv.AtCap() {
		if err := s.conversations.Close(ctx, conv.ID); err != nil {
			log.Printf("WARN (Chat): failed to close capped conversation %s: %v", conv.ID, err)
		}
		conv = nil
	}
	if conv != nil {
		return conv, nil
	}

	now := time.Now()
	conv = &models.Conversation{
		ID:            uuid.NewString(),
		SubscriberID:  sub.ID,
		Active:        true,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err := s.conversations.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Service) send(ctx context.Context, to, body string) {
	if err := s.sender.SendText(ctx, to, body); err != nil {
		log.Printf("WARN (Chat): failed to deliver message to %s: %v", to, err)
	}
}

func normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
