package webhooks

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/webutil"
)

const eventPaymentCompleted = "payment.completed"

// SubscriberLookup resolves a phone number to its subscriber record.
type SubscriberLookup interface {
	Subscriber(ctx context.Context, phoneNumber string) (*models.Subscriber, error)
}

// PaymentConfirmer activates a subscriber on a paid plan.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, sub *models.Subscriber, plan models.Plan) error
}

// BillingWebhookHandler terminates the payment provider's completion
// callbacks and flips the paying subscriber to active.
type BillingWebhookHandler struct {
	subscribers SubscriberLookup
	onboarding  PaymentConfirmer
}

func NewBillingWebhookHandler(subscribers SubscriberLookup, onboarding PaymentConfirmer) *BillingWebhookHandler {
	return &BillingWebhookHandler{subscribers: subscribers, onboarding: onboarding}
}

type billingEvent struct {
	Event string `json:"event"`
	Phone string `json:"phone"`
	Plan  string `json:"plan"`
}

func (h *BillingWebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) error {
	var event billingEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		return webutil.ErrBadRequestWrap("Undecodable billing payload", err)
	}

	if event.Event != eventPaymentCompleted {
		log.Printf("INFO (BillingWebhook): ignoring %q event", event.Event)
		acknowledge(w)
		return nil
	}
	if event.Phone == "" {
		return webutil.ErrBadRequest("Billing event missing phone number")
	}

	sub, err := h.subscribers.Subscriber(r.Context(), event.Phone)
	if err != nil {
		return err
	}

	plan := models.Plan(event.Plan)
	if !plan.IsValid() {
		plan = sub.Onboarding.PendingPlan
	}
	if !plan.IsValid() {
		return webutil.ErrBadRequest("Billing event carries no recognizable plan")
	}

	if err := h.onboarding.ConfirmPayment(r.Context(), sub, plan); err != nil {
		return err
	}

	log.Printf("INFO (BillingWebhook): payment confirmed for subscriber %s on plan %s", sub.ID, plan)
	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
	return nil
}
