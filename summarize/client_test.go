package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindim/tindim/config"
	"github.com/tindim/tindim/models"
)

const goodSummaryJSON = `{
  "headline": "Central bank holds rates steady",
  "bullet_points": ["Rates unchanged", "Inflation cooling", "Next review in March"],
  "sentiment": "neutral",
  "category": "finance"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.SummarizerConfig{
		APIKey:   "test-key",
		Endpoint: server.URL,
		Model:    "test-model",
	})
}

func chatReply(content, finishReason string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{
			"finish_reason": finishReason,
			"message":       map[string]string{"content": content},
		}},
	})
	return string(body)
}

func TestSummarizeDecodesStructuredReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, chatReply(goodSummaryJSON, "stop"))
	})

	summary, err := client.Summarize(context.Background(), "Rates hold", "body text")

	require.NoError(t, err)
	assert.Equal(t, "Central bank holds rates steady", summary.Headline)
	assert.Len(t, summary.BulletPoints, 3)
	assert.Equal(t, models.SentimentNeutral, summary.Sentiment)
	assert.Equal(t, models.CategoryFinance, summary.Category)
}

func TestSummarizeToleratesCodeFences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatReply("```json\n"+goodSummaryJSON+"\n```", "stop"))
	})

	summary, err := client.Summarize(context.Background(), "Rates hold", "body text")

	require.NoError(t, err)
	assert.Equal(t, "Central bank holds rates steady", summary.Headline)
}

func TestSummarizeSafetyBlock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatReply("", "content_filter"))
	})

	_, err := client.Summarize(context.Background(), "title", "body")

	assert.ErrorIs(t, err, ErrSafetyBlocked)
}

func TestSummarizeEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	})

	_, err := client.Summarize(context.Background(), "title", "body")

	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestSummarizeUnparsableContentIsParseError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatReply("Sure! Here is a summary in prose form.", "stop"))
	})

	_, err := client.Summarize(context.Background(), "title", "body")

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestDecodeSummaryUnwrapsSingleElementList(t *testing.T) {
	summary, err := decodeSummary("[" + goodSummaryJSON + "]")

	require.NoError(t, err)
	assert.Equal(t, "Central bank holds rates steady", summary.Headline)
}
