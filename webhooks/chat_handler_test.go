package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/webutil"
)

type recordedMessage struct {
	phone string
	name  string
	input string
}

type recordingChat struct {
	messages []recordedMessage
	err      error
}

func (r *recordingChat) HandleInbound(_ context.Context, phone, name, input string) error {
	r.messages = append(r.messages, recordedMessage{phone: phone, name: name, input: input})
	return r.err
}

func TestHandleVerifyEchoesChallenge(t *testing.T) {
	handler := NewChatWebhookHandler("secret-token", &recordingChat{})
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/chat?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()

	webutil.MakeHandler(handler.HandleVerify)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestHandleVerifyRejectsBadToken(t *testing.T) {
	handler := NewChatWebhookHandler("secret-token", &recordingChat{})
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/chat?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()

	webutil.MakeHandler(handler.HandleVerify)(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "12345")
}

func TestHandleVerifyRejectsWrongMode(t *testing.T) {
	handler := NewChatWebhookHandler("secret-token", &recordingChat{})
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/chat?hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()

	webutil.MakeHandler(handler.HandleVerify)(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

const textReceipt = `{
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"wa_id": "5511999990000", "profile": {"name": "Ana"}}],
        "messages": [{"from": "5511999990000", "type": "text", "text": {"body": "hello there"}}]
      }
    }]
  }]
}`

const buttonReceipt = `{
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"wa_id": "5511999990000", "profile": {"name": "Ana"}}],
        "messages": [{
          "from": "5511999990000",
          "type": "interactive",
          "interactive": {"button_reply": {"id": "premium", "title": "🚀 Premium - $14.90/mo"}}
        }]
      }
    }]
  }]
}`

func postReceipt(t *testing.T, handler *ChatWebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	webutil.MakeHandler(handler.HandleReceive)(rec, req)
	return rec
}

func TestHandleReceiveTextMessage(t *testing.T) {
	chat := &recordingChat{}
	rec := postReceipt(t, NewChatWebhookHandler("tok", chat), textReceipt)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, chat.messages, 1)
	assert.Equal(t, "5511999990000", chat.messages[0].phone)
	assert.Equal(t, "Ana", chat.messages[0].name)
	assert.Equal(t, "hello there", chat.messages[0].input)
}

func TestHandleReceiveButtonReplyUsesID(t *testing.T) {
	chat := &recordingChat{}
	rec := postReceipt(t, NewChatWebhookHandler("tok", chat), buttonReceipt)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, chat.messages, 1)
	assert.Equal(t, "premium", chat.messages[0].input, "the stable reply ID, not the display label")
}

func TestHandleReceiveAcknowledgesGarbage(t *testing.T) {
	chat := &recordingChat{}
	rec := postReceipt(t, NewChatWebhookHandler("tok", chat), "not json at all")

	assert.Equal(t, http.StatusOK, rec.Code, "the platform must never see an error status")
	assert.Empty(t, chat.messages)
}

func TestHandleReceiveAcknowledgesProcessingFailure(t *testing.T) {
	chat := &recordingChat{err: fmt.Errorf("database down")}
	rec := postReceipt(t, NewChatWebhookHandler("tok", chat), textReceipt)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReceiveIgnoresUnsupportedTypes(t *testing.T) {
	chat := &recordingChat{}
	receipt := `{"entry":[{"changes":[{"value":{"messages":[{"from":"111","type":"image"}]}}]}]}`
	rec := postReceipt(t, NewChatWebhookHandler("tok", chat), receipt)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, chat.messages)
}

type stubLookup struct {
	sub *models.Subscriber
	err error
}

func (s *stubLookup) Subscriber(_ context.Context, _ string) (*models.Subscriber, error) {
	return s.sub, s.err
}

type recordingConfirmer struct {
	confirmed []models.Plan
}

func (r *recordingConfirmer) ConfirmPayment(_ context.Context, _ *models.Subscriber, plan models.Plan) error {
	r.confirmed = append(r.confirmed, plan)
	return nil
}

func postBillingEvent(t *testing.T, handler *BillingWebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(body))
	rec := httptest.NewRecorder()
	webutil.MakeHandler(handler.HandlePaymentEvent)(rec, req)
	return rec
}

func TestBillingCompletedEventConfirmsPayment(t *testing.T) {
	confirmer := &recordingConfirmer{}
	handler := NewBillingWebhookHandler(
		&stubLookup{sub: &models.Subscriber{ID: "sub-1", PhoneNumber: "111"}}, confirmer)

	rec := postBillingEvent(t, handler,
		`{"event":"payment.completed","phone":"111","plan":"premium"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.Plan{models.PlanPremium}, confirmer.confirmed)
}

func TestBillingFallsBackToPendingPlan(t *testing.T) {
	confirmer := &recordingConfirmer{}
	handler := NewBillingWebhookHandler(
		&stubLookup{sub: &models.Subscriber{
			ID:         "sub-1",
			Onboarding: models.OnboardingPayload{PendingPlan: models.PlanBase},
		}}, confirmer)

	rec := postBillingEvent(t, handler, `{"event":"payment.completed","phone":"111"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.Plan{models.PlanBase}, confirmer.confirmed)
}

func TestBillingIgnoresOtherEvents(t *testing.T) {
	confirmer := &recordingConfirmer{}
	handler := NewBillingWebhookHandler(&stubLookup{}, confirmer)

	rec := postBillingEvent(t, handler, `{"event":"payment.refunded","phone":"111"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, confirmer.confirmed)
}

func TestBillingRejectsMissingPhone(t *testing.T) {
	handler := NewBillingWebhookHandler(&stubLookup{}, &recordingConfirmer{})

	rec := postBillingEvent(t, handler, `{"event":"payment.completed","plan":"base"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
