package onboarding

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindim/tindim/datastore"
	"github.com/tindim/tindim/digest"
	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/transport"
)

type fakeStore struct {
	updates int
	last    models.Subscriber
}

func (f *fakeStore) UpdateOnboarding(_ context.Context, sub *models.Subscriber) error {
	f.updates++
	f.last = *sub
	return nil
}

type fakeArticles struct {
	articles []models.Article
}

func (f *fakeArticles) ListAccepted(_ context.Context, _ datastore.AcceptedFilter) ([]models.Article, error) {
	return f.articles, nil
}

type sentMessage struct {
	to      string
	body    string
	buttons []transport.Button
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

func (f *fakeSender) SendAudio(_ context.Context, to, link string) error {
	f.sent = append(f.sent, sentMessage{to: to, body: link})
	return nil
}

func (f *fakeSender) SendButtons(_ context.Context, to, body string, buttons []transport.Button) error {
	f.sent = append(f.sent, sentMessage{to: to, body: body, buttons: buttons})
	return nil
}

func newTestMachine(articles []models.Article) (*Machine, *fakeStore, *fakeSender) {
	store := &fakeStore{}
	sender := &fakeSender{}
	machine := NewMachine(store, &fakeArticles{articles: articles}, digest.NewComposer(), sender)
	return machine, store, sender
}

func TestHandlePersistsTransition(t *testing.T) {
	machine, store, sender := newTestMachine(nil)
	sub := newLead()

	err := machine.Handle(context.Background(), sub, "hi")

	require.NoError(t, err)
	assert.Equal(t, 1, store.updates)
	assert.Equal(t, models.StateSelectingInterests, store.last.OnboardingState)
	require.NotEmpty(t, sender.sent)
	assert.Equal(t, sub.PhoneNumber, sender.sent[0].to)
}

func TestHandleUnrecognizedInputDoesNotPersist(t *testing.T) {
	machine, store, sender := newTestMachine(nil)
	sub := newLead()
	sub.OnboardingState = models.StateSelectingProfile

	err := machine.Handle(context.Background(), sub, "qwertyuiop")

	require.NoError(t, err)
	assert.Zero(t, store.updates)
	assert.NotEmpty(t, sender.sent)
}

func TestToneSelectionDeliversDemoAndOffer(t *testing.T) {
	articles := []models.Article{{
		Title: "Chip launch",
		Score: 70,
		Summary: &models.Summary{
			Headline:     "Chip launch",
			BulletPoints: []string{"point"},
			Sentiment:    models.SentimentNeutral,
			Category:     models.CategoryTech,
		},
	}}
	machine, _, sender := newTestMachine(articles)
	sub := newLead()
	sub.OnboardingState = models.StateSelectingTone
	sub.Onboarding.SelectedInterests = []models.Category{models.CategoryTech}

	err := machine.Handle(context.Background(), sub, "formal")

	require.NoError(t, err)
	assert.Equal(t, models.StateDemoSent, sub.OnboardingState)

	var sawDemo, sawPlans bool
	for _, msg := range sender.sent {
		if strings.Contains(msg.body, "Chip launch") {
			sawDemo = true
		}
		if len(msg.buttons) == 2 {
			sawPlans = true
		}
	}
	assert.True(t, sawDemo, "demo digest should include the article")
	assert.True(t, sawPlans, "plan buttons should follow the demo")
}

func TestConfirmPaymentActivates(t *testing.T) {
	machine, store, sender := newTestMachine(nil)
	sub := newLead()
	sub.OnboardingState = models.StateAwaitingPayment
	sub.Onboarding.PendingPlan = models.PlanPremium

	err := machine.ConfirmPayment(context.Background(), sub, models.PlanPremium)

	require.NoError(t, err)
	assert.Equal(t, models.StateActive, sub.OnboardingState)
	assert.True(t, sub.Active)
	assert.Equal(t, models.PlanPremium, sub.Plan)
	assert.Equal(t, models.DefaultPreferredTimes, sub.PreferredTimes)
	assert.Equal(t, 1, store.updates)
	require.NotEmpty(t, sender.sent)
	assert.Contains(t, sender.sent[0].body, "Payment confirmed")
}
