package summarize

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
	requestTimeout   = 30 * time.Second
	maxContentLength = 5000 // characters of article body sent per request
)

const systemPrompt = `You are a news analyst. Read the article and produce an executive summary.

Return ONLY a valid JSON object with this exact structure:
{
  "headline": "short, catchy headline",
  "bullet_points": ["key point 1", "key point 2", "key point 3"],
  "sentiment": "positive" | "neutral" | "negative",
  "category": "tech" | "finance" | "crypto" | "agro" | "business" | "politics" | "sports" | "entertainment" | "health" | "science" | "world" | "general"
}

Rules:
1. Be concise and direct.
2. Keep a professional but conversational tone.
3. Categorize precisely.`

// Client implements Summarizer against an OpenAI-compatible chat completions
// endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Summarizer = (*Client)(nil)

func NewClient(cfg config.SummarizerConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize posts the article to the collaborator and decodes the structured
// summary from its reply.
func (c *Client) Summarize(ctx context.Context, title, content string) (*models.Summary, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("summarizer client misconfigured")
	}

	if len(content) > maxContentLength {
		content = content[:maxContentLength]
	}

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0.2,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": fmt.Sprintf("Title: %s\n\nContent: %s", title, content)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summarizer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build summarizer request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summarizer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("summarizer error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrInvalidResponse
	}

	choice := parsed.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, ErrSafetyBlocked
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, ErrInvalidResponse
	}

	return decodeSummary(choice.Message.Content)
}

// decodeSummary extracts the JSON object from the reply, tolerating markdown
// code fences, and handles collaborators that wrap single results in a list.
func decodeSummary(raw string) (*models.Summary, error) {
	raw = stripCodeFence(raw)

	var summary models.Summary
	if err := json.Unmarshal([]byte(raw), &summary); err == nil {
		return &summary, nil
	}

	var list []models.Summary
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, &ParseError{cause: err}
	}
	if len(list) == 0 {
		return nil, &ParseError{cause: fmt.Errorf("empty summary list")}
	}
	return &list[0], nil
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		raw = raw[idx+len("```json"):]
	} else if idx := strings.Index(raw, "```"); idx >= 0 {
		raw = raw[idx+len("```"):]
	} else {
		return raw
	}
	if end := strings.Index(raw, "```"); end >= 0 {
		raw = raw[:end]
	}
	return strings.TrimSpace(raw)
}
