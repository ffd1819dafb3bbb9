package chat

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
	"github.com/tindim/tindim/models"
)

const (
	assistantTimeout  = 30 * time.Second
	maxContextArticle = 5
)

// Assistant generates conversational replies grounded in recent news.
type Assistant interface {
	Reply(ctx context.Context, sub *models.Subscriber, history []models.Message, news []models.Article, question string) (string, error)
}

// AssistantClient talks to an OpenAI-compatible chat completions endpoint,
// calibrating the reply with the subscriber's profile and tone.
type AssistantClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Assistant = (*AssistantClient)(nil)

func NewAssistantClient(cfg config.SummarizerConfig) *AssistantClient {
	return &AssistantClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: assistantTimeout,
		},
	}
}

func (c *AssistantClient) Reply(ctx context.Context, sub *models.Subscriber, history []models.Message, news []models.Article, question string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("assistant client misconfigured")
	}

	messages := []map[string]string{
		{"role": "system", "content": systemPromptFor(sub, news)},
	}
	for _, msg := range history {
		role := "user"
		if msg.Role == models.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, map[string]string{"role": role, "content": msg.Content})
	}
	messages = append(messages, map[string]string{"role": "user", "content": question})

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0.7,
		"messages":    messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal assistant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build assistant request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("assistant error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode assistant response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("assistant returned an empty reply")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func systemPromptFor(sub *models.Subscriber, news []models.Article) string {
	var b strings.Builder
	b.WriteString("You are Tindim, a news assistant chatting with a subscriber. ")
	b.WriteString("Answer questions about recent news concisely, in chat style, at most a few short paragraphs.\n")

	switch sub.Profile {
	case models.ProfileProfessional:
		b.WriteString("The subscriber works in the field: be direct, skip basics.\n")
	case models.ProfileInvestor:
		b.WriteString("The subscriber is an investor: emphasize market impact and opportunities.\n")
	default:
		b.WriteString("The subscriber reads out of curiosity: explain technical terms in plain language.\n")
	}
	if sub.Tone == models.ToneCasual {
		b.WriteString("Use a relaxed, friendly tone with the occasional emoji.\n")
	} else {
		b.WriteString("Use a professional, sober tone.\n")
	}

	if len(news) > 0 {
		b.WriteString("\nToday's relevant headlines:\n")
		for i, article := range news {
			if i >= maxContextArticle {
				break
			}
			headline := article.Title
			if article.Summary != nil && article.Summary.Headline != "" {
				headline = article.Summary.Headline
			}
			fmt.Fprintf(&b, "- %s (%s)\n", headline, article.Source)
		}
	}
	return b.String()
}
