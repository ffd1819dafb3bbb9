// Package audio produces narrated digests for premium subscribers. The
// actual speech synthesis is an external collaborator behind Synthesizer.
package audio

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tindim/tindim/datastore"
	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/transport"
)

const (
	lookback           = 48 * time.Hour
	maxScriptArticles  = 6
	maxPointsPerScript = 2

	// briefingSlot keys the daily dispatch claim. The audio job fires once a
	// day, so the slot is a constant and the date carries the uniqueness.
	briefingSlot = "daily"
)

// Synthesizer turns a narration script into a hosted audio file and returns
// its public link.
type Synthesizer interface {
	Synthesize(ctx context.Context, script string) (string, error)
}

// SubscriberLister supplies the delivery audience.
type SubscriberLister interface {
	ListActive(ctx context.Context) ([]models.Subscriber, error)
}

// DispatchClaimer admits each (subscriber, date) briefing exactly once, so an
// overlapping fire or a restart across the trigger never double-sends.
type DispatchClaimer interface {
	TryClaim(ctx context.Context, subscriberID string, job models.DispatchJob, date, slot string) (bool, error)
}

// ArticleLister supplies the narrated content.
type ArticleLister interface {
	ListAccepted(ctx context.Context, filter datastore.AcceptedFilter) ([]models.Article, error)
}

type Service struct {
	subscribers SubscriberLister
	articles    ArticleLister
	dispatches  DispatchClaimer
	synthesizer Synthesizer
	sender      transport.Sender
}

func NewService(subscribers SubscriberLister, articles ArticleLister, dispatches DispatchClaimer, synthesizer Synthesizer, sender transport.Sender) *Service {
	return &Service{
		subscribers: subscribers,
		articles:    articles,
		dispatches:  dispatches,
		synthesizer: synthesizer,
		sender:      sender,
	}
}

// SendDailyBriefings narrates a personalized briefing for every premium or
// beta subscriber. Audio is a perk, not a guarantee: every failure is logged
// and skipped, never propagated.
func (s *Service) SendDailyBriefings(ctx context.Context) error {
	subs, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return err
	}

	date := time.Now().Format("2006-01-02")
	sent := 0
	for i := range subs {
		sub := &subs[i]
		if sub.Plan != models.PlanPremium && sub.Plan != models.PlanBeta {
			continue
		}
		claimed, err := s.dispatches.TryClaim(ctx, sub.ID, models.JobAudio, date, briefingSlot)
		if err != nil {
			log.Printf("ERROR (Audio): claim failed for subscriber %s: %v", sub.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		if err := s.sendBriefing(ctx, sub); err != nil {
			log.Printf("WARN (Audio): briefing for subscriber %s skipped: %v", sub.ID, err)
			continue
		}
		sent++
	}
	log.Printf("INFO (Audio): sent %d audio briefings", sent)
	return nil
}

func (s *Service) sendBriefing(ctx context.Context, sub *models.Subscriber) error {
	articles, err := s.articles.ListAccepted(ctx, datastore.AcceptedFilter{
		Since:      time.Now().Add(-lookback),
		Categories: sub.Interests,
		Limit:      maxScriptArticles,
	})
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		return fmt.Errorf("no recent articles for interests %v", sub.Interests)
	}

	script := BuildScript(sub.Name, articles)
	link, err := s.synthesizer.Synthesize(ctx, script)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}
	if err := s.sender.SendAudio(ctx, sub.PhoneNumber, link); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	return nil
}

// BuildScript writes the narration text: a greeting, the headlines with their
// key points, and a sign-off. Plain speech, no markup.
func BuildScript(name string, articles []models.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Good morning, %s! This is Tindim with your news briefing.\n\n", name)

	if len(articles) > maxScriptArticles {
		articles = articles[:maxScriptArticles]
	}
	for _, article := range articles {
		headline := article.Title
		var points []string
		if article.Summary != nil {
			if article.Summary.Headline != "" {
				headline = article.Summary.Headline
			}
			points = article.Summary.BulletPoints
		}
		fmt.Fprintf(&b, "%s.\n", strings.TrimRight(headline, "."))
		if len(points) > maxPointsPerScript {
			points = points[:maxPointsPerScript]
		}
		for _, point := range points {
			fmt.Fprintf(&b, "%s.\n", strings.TrimRight(point, "."))
		}
		b.WriteString("\n")
	}

	b.WriteString("That's all for now. Have a great day, and talk soon!")
	return b.String()
}
