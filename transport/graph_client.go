package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tindim/tindim/config"
)

const (
	graphAPIBase   = "https://graph.facebook.com/v22.0"
	requestTimeout = 30 * time.Second
	maxButtons     = 3  // channel limit per interactive message
	maxButtonTitle = 20 // channel limit per button title
)

// GraphClient sends messages through a Graph-API-style chat endpoint.
type GraphClient struct {
	messagesURL string
	token       string
	httpClient  *http.Client
}

var _ Sender = (*GraphClient)(nil)

func NewGraphClient(cfg config.ChatConfig) *GraphClient {
	return &GraphClient{
		messagesURL: fmt.Sprintf("%s/%s/messages", graphAPIBase, cfg.PhoneNumberID),
		token:       cfg.APIToken,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

func (c *GraphClient) SendText(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return c.post(ctx, payload)
}

func (c *GraphClient) SendAudio(ctx context.Context, to, link string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "audio",
		"audio":             map[string]string{"link": link},
	}
	return c.post(ctx, payload)
}

func (c *GraphClient) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}

	actions := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		title := b.Title
		if len(title) > maxButtonTitle {
			title = title[:maxButtonTitle]
		}
		actions = append(actions, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": title},
		})
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]any{"buttons": actions},
		},
	}
	return c.post(ctx, payload)
}

func (c *GraphClient) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("chat delivery failed with %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}
