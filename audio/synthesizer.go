package audio

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

const synthesisTimeout = 60 * time.Second

// SpeechClient drives an ElevenLabs-style text-to-speech API that returns a
// hosted audio URL.
type SpeechClient struct {
	baseURL    string
	voiceID    string
	apiKey     string
	httpClient *http.Client
}

var _ Synthesizer = (*SpeechClient)(nil)

func NewSpeechClient(cfg config.SpeechConfig) *SpeechClient {
	return &SpeechClient{
		baseURL: cfg.BaseURL,
		voiceID: cfg.VoiceID,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: synthesisTimeout,
		},
	}
}

func (c *SpeechClient) Synthesize(ctx context.Context, script string) (string, error) {
	if c.apiKey == "" || c.baseURL == "" || c.voiceID == "" {
		return "", fmt.Errorf("speech client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"text":     script,
		"model_id": "eleven_multilingual_v2",
		"voice_settings": map[string]float64{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=hosted", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("synthesis error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed struct {
		AudioURL string `json:"audio_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode synthesis response: %w", err)
	}
	if parsed.AudioURL == "" {
		return "", fmt.Errorf("synthesis response carried no audio URL")
	}
	return parsed.AudioURL, nil
}
