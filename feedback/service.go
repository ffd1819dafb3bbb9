// Package feedback collects subscriber sentiment: inactivity probes, NPS
// surveys, and spontaneous bug reports or feature requests.
package feedback

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/transport"
)

const (
	inactivityAfter = 3 * 24 * time.Hour  // silence before a churn probe
	npsInterval     = 30 * 24 * time.Hour // minimum gap between NPS surveys
	replyWindow     = 48 * time.Hour      // how long a probe's answer is still claimed
)

const inactivityProbe = "👋 Hey! I noticed you've gone quiet...\n\n" +
	"Did I talk too much? Or was the news boring? 🤔\n\n" +
	"Help me improve:\n" +
	"• Send *1* for 'Too many messages'\n" +
	"• Send *2* for 'Irrelevant content'\n" +
	"• Send *3* for 'All good, just busy'\n\n" +
	"_Your opinion is gold to me!_ ✨"

const npsSurvey = "🎉 *Happy Friday!*\n\n" +
	"Quick one: from *0 to 10*, how likely are you to recommend me to a friend?\n\n" +
	"_(Just send the number)_\n\n" +
	"And if you like, tell me: what's missing for a *10*? 🚀"

var implicitResponses = map[int]string{
	1: "Got it! I'll ease off on the messages. 🕐\n\nYou can adjust delivery times by sending *settings*.",
	2: "Hmm, boring content, right? 📰\n\nLet's fix your topics! Send *settings* to pick different ones.",
	3: "Glad everything's fine! 😊\n\nWhenever you need me, just say the word. I'm always here!",
}

// SubscriberStore is the subscriber-side persistence the service needs.
type SubscriberStore interface {
	ListInactive(ctx context.Context, messageCutoff, probeCutoff time.Time) ([]models.Subscriber, error)
	ListForNPS(ctx context.Context, cutoff time.Time) ([]models.Subscriber, error)
	MarkFeedbackSent(ctx context.Context, subscriberID string, at time.Time) error
	MarkNPSSent(ctx context.Context, subscriberID string, at time.Time) error
	SetNPSScore(ctx context.Context, subscriberID string, score int) error
}

// EventStore persists feedback events.
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.FeedbackEvent) error
	ListUnresolved(ctx context.Context, feedbackType models.FeedbackType, limit int) ([]models.FeedbackEvent, error)
	MarkResolved(ctx context.Context, eventID string, at time.Time) error
}

type Service struct {
	subscribers SubscriberStore
	events      EventStore
	sender      transport.Sender
}

func NewService(subscribers SubscriberStore, events EventStore, sender transport.Sender) *Service {
	return &Service{subscribers: subscribers, events: events, sender: sender}
}

// SendInactivityProbes messages every active subscriber who has been silent
// past the cutoff and was not probed recently. One subscriber's failure never
// blocks the rest.
func (s *Service) SendInactivityProbes(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-inactivityAfter)
	subs, err := s.subscribers.ListInactive(ctx, cutoff, cutoff)
	if err != nil {
		return err
	}

	sent := 0
	for i := range subs {
		sub := &subs[i]
		if err := s.sender.SendText(ctx, sub.PhoneNumber, inactivityProbe); err != nil {
			log.Printf("WARN (Feedback): failed to probe subscriber %s: %v", sub.ID, err)
			continue
		}
		if err := s.subscribers.MarkFeedbackSent(ctx, sub.ID, now); err != nil {
			log.Printf("WARN (Feedback): failed to stamp probe for subscriber %s: %v", sub.ID, err)
		}
		sent++
	}
	log.Printf("INFO (Feedback): sent %d inactivity probes", sent)
	return nil
}

// SendNPSSurveys messages active subscribers not surveyed within the minimum
// interval. Meant to run on the weekly survey day.
func (s *Service) SendNPSSurveys(ctx context.Context, now time.Time) error {
	subs, err := s.subscribers.ListForNPS(ctx, now.Add(-npsInterval))
	if err != nil {
		return err
	}

	sent := 0
	for i := range subs {
		sub := &subs[i]
		if err := s.sender.SendText(ctx, sub.PhoneNumber, npsSurvey); err != nil {
			log.Printf("WARN (Feedback): failed to survey subscriber %s: %v", sub.ID, err)
			continue
		}
		if err := s.subscribers.MarkNPSSent(ctx, sub.ID, now); err != nil {
			log.Printf("WARN (Feedback): failed to stamp survey for subscriber %s: %v", sub.ID, err)
		}
		sent++
	}
	log.Printf("INFO (Feedback): sent %d NPS surveys", sent)
	return nil
}

// HandleResponse inspects one inbound message from an active subscriber and
// claims it when it answers an open probe or reports a bug or idea. The bool
// result reports whether the message was consumed.
func (s *Service) HandleResponse(ctx context.Context, sub *models.Subscriber, input string) (bool, error) {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)

	if rest, ok := strippedPrefix(lower, trimmed, "bug"); ok {
		return true, s.recordReport(ctx, sub, models.FeedbackBugReport, rest,
			"🐛 Thanks for the report! I've logged it and the team will take a look.")
	}
	if rest, ok := strippedPrefix(lower, trimmed, "suggestion"); ok {
		return true, s.recordReport(ctx, sub, models.FeedbackFeatureRequest, rest,
			"💡 Great idea, noted! Thanks for helping me improve.")
	}

	probe := s.openProbe(sub)
	if probe == "" {
		return false, nil
	}

	score, comment := splitScore(trimmed)

	switch probe {
	case "nps":
		if score == nil || *score < 0 || *score > 10 {
			return false, nil
		}
		return true, s.recordNPS(ctx, sub, *score, comment)
	case "inactivity":
		if score == nil || *score < 1 || *score > 3 {
			return false, nil
		}
		return true, s.recordImplicit(ctx, sub, *score, comment)
	}
	return false, nil
}

// openProbe returns which probe, if any, this subscriber is still expected to
// answer. When both were sent recently the newer one wins.
func (s *Service) openProbe(sub *models.Subscriber) string {
	now := time.Now()
	npsOpen := sub.LastNPSAt != nil && now.Sub(*sub.LastNPSAt) < replyWindow
	probeOpen := sub.LastFeedbackAt != nil && now.Sub(*sub.LastFeedbackAt) < replyWindow

	switch {
	case npsOpen && probeOpen:
		if sub.LastNPSAt.After(*sub.LastFeedbackAt) {
			return "nps"
		}
		return "inactivity"
	case npsOpen:
		return "nps"
	case probeOpen:
		return "inactivity"
	}
	return ""
}

func (s *Service) recordNPS(ctx context.Context, sub *models.Subscriber, score int, comment string) error {
	if err := s.saveEvent(ctx, sub.ID, models.FeedbackNPS, &score, comment); err != nil {
		return err
	}
	if err := s.subscribers.SetNPSScore(ctx, sub.ID, score); err != nil {
		log.Printf("WARN (Feedback): failed to store NPS score for subscriber %s: %v", sub.ID, err)
	}
	log.Printf("INFO (Feedback): subscriber %s answered NPS with %d", sub.ID, score)

	s.send(ctx, sub.PhoneNumber, npsResponse(score))
	return nil
}

func (s *Service) recordImplicit(ctx context.Context, sub *models.Subscriber, score int, comment string) error {
	if err := s.saveEvent(ctx, sub.ID, models.FeedbackInactivity, &score, comment); err != nil {
		return err
	}
	log.Printf("INFO (Feedback): subscriber %s answered the inactivity probe with %d", sub.ID, score)

	s.send(ctx, sub.PhoneNumber, implicitResponses[score])
	return nil
}

func (s *Service) recordReport(ctx context.Context, sub *models.Subscriber, kind models.FeedbackType, comment, thanks string) error {
	if err := s.saveEvent(ctx, sub.ID, kind, nil, comment); err != nil {
		return err
	}
	s.send(ctx, sub.PhoneNumber, thanks)
	return nil
}

func (s *Service) saveEvent(ctx context.Context, subscriberID string, kind models.FeedbackType, score *int, comment string) error {
	return s.events.CreateEvent(ctx, &models.FeedbackEvent{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		Type:         kind,
		Score:        score,
		Comment:      comment,
		CreatedAt:    time.Now(),
	})
}

// PendingBugs lists open bug reports for the admin surface.
func (s *Service) PendingBugs(ctx context.Context, limit int) ([]models.FeedbackEvent, error) {
	return s.events.ListUnresolved(ctx, models.FeedbackBugReport, limit)
}

// ResolveBug closes a bug report.
func (s *Service) ResolveBug(ctx context.Context, eventID string) error {
	return s.events.MarkResolved(ctx, eventID, time.Now())
}

func (s *Service) send(ctx context.Context, to, body string) {
	if err := s.sender.SendText(ctx, to, body); err != nil {
		log.Printf("WARN (Feedback): failed to deliver reply to %s: %v", to, err)
	}
}

// npsResponse classifies the score: 9-10 promoter, 7-8 passive, below that
// detractor.
func npsResponse(score int) string {
	switch {
	case score >= 9:
		return "🎉 Awesome, thank you for the trust!\n\nIf you'd like to share Tindim with a friend, just forward this chat!"
	case score >= 7:
		return "😊 Thanks for the feedback!\n\nTell me: what would make it a 10?"
	default:
		return "😔 I hear you... Thanks for the honesty.\n\nTell me more? I really want to do better for you!"
	}
}

// splitScore pulls a leading integer off the message; the remainder is kept
// as a free-text comment.
func splitScore(input string) (*int, string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil, ""
	}
	score, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, input
	}
	return &score, strings.TrimSpace(strings.TrimPrefix(input, fields[0]))
}

// strippedPrefix matches messages like "bug: the digest came twice" and
// returns the description.
func strippedPrefix(lower, original, prefix string) (string, bool) {
	if !strings.HasPrefix(lower, prefix) {
		return "", false
	}
	rest := strings.TrimSpace(original[len(prefix):])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	if rest == "" {
		return "", false
	}
	return rest, true
}
