package webhooks

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/tindim/tindim/webutil"
)

const (
	paramHubMode        = "hub.mode"
	paramHubVerifyToken = "hub.verify_token"
	paramHubChallenge   = "hub.challenge"

	hubModeSubscribe = "subscribe"
)

// InboundChatService consumes a single decoded inbound message.
type InboundChatService interface {
	HandleInbound(ctx context.Context, phoneNumber, name, input string) error
}

// ChatWebhookHandler terminates the messaging platform's webhook: the GET
// verification handshake and the POST message receipts.
type ChatWebhookHandler struct {
	verifyToken string
	chat        InboundChatService
}

func NewChatWebhookHandler(verifyToken string, chat InboundChatService) *ChatWebhookHandler {
	return &ChatWebhookHandler{verifyToken: verifyToken, chat: chat}
}

// HandleVerify answers the platform's subscription handshake. The challenge
// is echoed back verbatim only when the verify token matches.
func (h *ChatWebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	mode := query.Get(paramHubMode)
	token := query.Get(paramHubVerifyToken)

	if mode != hubModeSubscribe || h.verifyToken == "" || token != h.verifyToken {
		log.Printf("WARN (ChatWebhook): verification rejected (mode=%q)", mode)
		return webutil.ErrForbidden("Verification failed")
	}

	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(query.Get(paramHubChallenge)))
	return nil
}

// webhookEnvelope mirrors the platform's nested receipt payload. Only the
// fields the service reads are declared.
type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive struct {
						ButtonReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// HandleReceive decodes a receipt batch and hands each message to the chat
// service. The platform retries non-200 responses aggressively, so decode
// and processing failures are logged and acknowledged rather than surfaced.
func (h *ChatWebhookHandler) HandleReceive(w http.ResponseWriter, r *http.Request) error {
	var envelope webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		log.Printf("WARN (ChatWebhook): undecodable receipt payload: %v", err)
		acknowledge(w)
		return nil
	}

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			names := make(map[string]string, len(value.Contacts))
			for _, contact := range value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, msg := range value.Messages {
				input := messageInput(msg.Type, msg.Text.Body, msg.Interactive.ButtonReply.ID)
				if input == "" {
					log.Printf("INFO (ChatWebhook): ignoring %q message from %s", msg.Type, msg.From)
					continue
				}
				if err := h.chat.HandleInbound(r.Context(), msg.From, names[msg.From], input); err != nil {
					log.Printf("ERROR (ChatWebhook): failed to handle message from %s: %v", msg.From, err)
				}
			}
		}
	}

	acknowledge(w)
	return nil
}

// messageInput flattens the two supported message shapes into plain text.
// Button taps carry their reply ID so downstream matching stays stable even
// if the button labels change.
func messageInput(msgType, textBody, buttonID string) string {
	switch msgType {
	case "text":
		return textBody
	case "interactive":
		return buttonID
	default:
		return ""
	}
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
