// Package onboarding drives the guided setup conversation: a finite state
// machine from first contact through interest and tone selection, a trial
// digest, and payment, plus the settings sub-flow active subscribers re-enter.
package onboarding

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tindim/tindim/datastore"
	"github.com/tindim/tindim/digest"
	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/transport"
)

const demoLookback = 48 * time.Hour

// SubscriberStore persists transition results.
type SubscriberStore interface {
	UpdateOnboarding(ctx context.Context, sub *models.Subscriber) error
}

// ArticleLister supplies accepted articles for the trial digest.
type ArticleLister interface {
	ListAccepted(ctx context.Context, filter datastore.AcceptedFilter) ([]models.Article, error)
}

// Machine applies state transitions: it persists the mutated subscriber,
// delivers the emitted replies, and generates the trial digest when a
// transition calls for it.
type Machine struct {
	subscribers SubscriberStore
	articles    ArticleLister
	composer    *digest.Composer
	sender      transport.Sender
}

func NewMachine(subscribers SubscriberStore, articles ArticleLister, composer *digest.Composer, sender transport.Sender) *Machine {
	return &Machine{
		subscribers: subscribers,
		articles:    articles,
		composer:    composer,
		sender:      sender,
	}
}

// Handle processes one inbound message for a non-chat subscriber. The
// subscriber is mutated in place; callers should not reuse it on error.
func (m *Machine) Handle(ctx context.Context, sub *models.Subscriber, input string) error {
	previous := sub.OnboardingState
	fx := Transition(sub, input)

	if fx.Changed {
		if err := m.subscribers.UpdateOnboarding(ctx, sub); err != nil {
			return fmt.Errorf("failed to persist onboarding transition: %w", err)
		}
		if sub.OnboardingState != previous {
			log.Printf("INFO (Onboarding): subscriber %s moved %s -> %s", sub.ID, previous, sub.OnboardingState)
		}
	} else {
		log.Printf("INFO (Onboarding): subscriber %s stayed in %s on unrecognized input", sub.ID, previous)
	}

	m.deliver(ctx, sub.PhoneNumber, fx.Replies)

	if fx.SendDemo {
		m.sendDemo(ctx, sub)
	}
	return nil
}

// ConfirmPayment is the billing-completion entry point. It activates the
// subscriber regardless of chat input, as long as they were awaiting payment.
func (m *Machine) ConfirmPayment(ctx context.Context, sub *models.Subscriber, plan models.Plan) error {
	if !plan.IsValid() {
		plan = models.PlanBase
	}
	if sub.OnboardingState != models.StateAwaitingPayment && sub.OnboardingState != models.StateDemoSent {
		log.Printf("WARN (Onboarding): payment confirmation for subscriber %s in state %s", sub.ID, sub.OnboardingState)
	}

	sub.Plan = plan
	sub.Active = true
	sub.OnboardingState = models.StateActive
	sub.Onboarding.PendingPlan = ""
	if len(sub.PreferredTimes) == 0 {
		sub.PreferredTimes = models.DefaultPreferredTimes
	}

	if err := m.subscribers.UpdateOnboarding(ctx, sub); err != nil {
		return fmt.Errorf("failed to activate subscriber %s: %w", sub.ID, err)
	}
	log.Printf("INFO (Onboarding): subscriber %s activated on plan %s", sub.ID, plan)

	m.deliver(ctx, sub.PhoneNumber, []Reply{
		{Text: "🎉 *Payment confirmed!*"},
		{Text: welcomeForPlan(plan)},
	})
	return nil
}

func welcomeForPlan(plan models.Plan) string {
	if plan == models.PlanPremium || plan == models.PlanBeta {
		return "🎩 *Welcome to Tindim Premium!*\n\n" +
			"You unlocked:\n" +
			"✅ Daily personalized digests\n" +
			"✅ Narrated audio briefings\n" +
			"✅ Deep-dive analysis on demand\n" +
			"✅ Unlimited chat about the news\n\n" +
			"📅 *Your digests arrive:*\n" +
			"• At *07:00* to start the day informed ☕\n" +
			"• At *19:00* to close the day up to date 🌙\n\n" +
			"💬 And you can ask me anything about the news, anytime!"
	}
	return "🎩 *Welcome to Tindim!*\n\n" +
		"You unlocked:\n" +
		"✅ Daily personalized digests\n" +
		"✅ Chat about the news\n\n" +
		"📅 *Your digests arrive:*\n" +
		"• At *07:00* to start the day informed ☕\n" +
		"• At *19:00* to close the day up to date 🌙\n\n" +
		"💬 Ask me anything!"
}

// sendDemo builds and delivers the trial digest, then the subscription offer.
// Everything here is best-effort; a transport hiccup must not corrupt the
// already persisted state.
func (m *Machine) sendDemo(ctx context.Context, sub *models.Subscriber) {
	interests := sub.Onboarding.SelectedInterests
	if len(interests) == 0 {
		interests = sub.Interests
	}

	articles, err := m.articles.ListAccepted(ctx, datastore.AcceptedFilter{
		Since:      time.Now().Add(-demoLookback),
		Categories: interests,
		Limit:      15,
	})
	if err != nil {
		log.Printf("ERROR (Onboarding): failed to load articles for demo: %v", err)
	}

	demo := m.composer.ComposeDemo(interests, articles)
	if demo == "" {
		demo = "📰 *I don't have fresh news on your topics just yet.*\n\n" +
			"No worries! As soon as you subscribe I'll monitor the sources " +
			"and send everything fresh every day at 07:00 and 19:00."
	}
	m.deliver(ctx, sub.PhoneNumber, []Reply{{Text: demo}})

	m.deliver(ctx, sub.PhoneNumber, []Reply{
		{Text: "✨ *Liked the digest?*\n\n" +
			"Imagine getting this *every day at 07:00*, ready before your day starts, " +
			"and at *19:00* to close the day up to date.\n\n" +
			"💰 *Plans:*\n" +
			"• *Base* - $4.90/mo\n" +
			"  _Daily digests + news chat_\n\n" +
			"• *Premium* - $14.90/mo\n" +
			"  _Everything in Base + narrated audio + deep dives_\n\n" +
			"🎁 *Try it FREE for 5 days!*"},
		{Text: "Choose your plan:", Buttons: planButtons()},
	})
}

func (m *Machine) deliver(ctx context.Context, to string, replies []Reply) {
	for _, reply := range replies {
		var err error
		if len(reply.Buttons) > 0 {
			err = m.sender.SendButtons(ctx, to, reply.Text, reply.Buttons)
		} else {
			err = m.sender.SendText(ctx, to, reply.Text)
		}
		if err != nil {
			log.Printf("WARN (Onboarding): failed to deliver reply to %s: %v", to, err)
		}
	}
}
