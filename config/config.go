package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "TINDIM_CONFIG"
	portEnv        = "PORT"
	databaseURLEnv = "DB_CONNECTION_STRING"

	chatTokenEnv   = "CHAT_API_TOKEN"
	chatPhoneIDEnv = "CHAT_PHONE_NUMBER_ID"
	chatVerifyEnv  = "CHAT_VERIFY_TOKEN"

	summarizerKeyEnv      = "SUMMARIZER_API_KEY"
	summarizerEndpointEnv = "SUMMARIZER_ENDPOINT"
	summarizerModelEnv    = "SUMMARIZER_MODEL"

	speechKeyEnv     = "SPEECH_API_KEY"
	speechBaseURLEnv = "SPEECH_BASE_URL"
	speechVoiceEnv   = "SPEECH_VOICE_ID"

	defaultPort        = "8080"
	defaultDatabaseURL = "user=postgres password=password dbname=tindim host=localhost port=5432 sslmode=disable"
)

// Config holds everything the service needs at startup: env-sourced secrets
// and connection details, plus curation data loaded from an optional YAML file.
type Config struct {
	Port        string
	DatabaseURL string

	Chat       ChatConfig
	Summarizer SummarizerConfig
	Speech     SpeechConfig

	Curation CurationConfig `yaml:"curation"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ChatConfig holds outbound/inbound chat transport credentials.
type ChatConfig struct {
	APIToken      string
	PhoneNumberID string
	VerifyToken   string
}

// SummarizerConfig points at the external summarization collaborator.
type SummarizerConfig struct {
	APIKey   string
	Endpoint string
	Model    string
}

// SpeechConfig points at the text-to-speech collaborator used for audio
// briefings.
type SpeechConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
}

// CurationConfig is the tunable data the curation stages consume.
type CurationConfig struct {
	Feeds          []string `yaml:"feeds"`
	PremiumSources []string `yaml:"premiumSources"`
}

// ScheduleConfig carries the fixed-time scheduler entries as cron expressions
// or "HH:MM" times of day.
type ScheduleConfig struct {
	IngestionCron string `yaml:"ingestionCron"`
	AudioTime     string `yaml:"audioTime"`
	FeedbackTime  string `yaml:"feedbackTime"`
	ResetTime     string `yaml:"resetTime"`
}

// Load assembles configuration from the environment and, when TINDIM_CONFIG
// points at a YAML file, merges curation and schedule data from it.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        envOrDefault(portEnv, defaultPort),
		DatabaseURL: os.Getenv(databaseURLEnv),
		Chat: ChatConfig{
			APIToken:      os.Getenv(chatTokenEnv),
			PhoneNumberID: os.Getenv(chatPhoneIDEnv),
			VerifyToken:   os.Getenv(chatVerifyEnv),
		},
		Summarizer: SummarizerConfig{
			APIKey:   os.Getenv(summarizerKeyEnv),
			Endpoint: envOrDefault(summarizerEndpointEnv, "https://api.openai.com/v1/chat/completions"),
			Model:    envOrDefault(summarizerModelEnv, "gpt-4o-mini"),
		},
		Speech: SpeechConfig{
			APIKey:  os.Getenv(speechKeyEnv),
			BaseURL: envOrDefault(speechBaseURLEnv, "https://api.elevenlabs.io/v1"),
			VoiceID: os.Getenv(speechVoiceEnv),
		},
		Schedule: ScheduleConfig{
			IngestionCron: "0 */2 * * *",
			AudioTime:     "08:00",
			FeedbackTime:  "14:00",
			ResetTime:     "03:00",
		},
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
		log.Println("WARNING: DB_CONNECTION_STRING not set, using default local connection string.")
	}
	if cfg.Chat.APIToken == "" {
		log.Println("WARNING: CHAT_API_TOKEN not set. Outbound chat delivery will fail at runtime.")
	}
	if cfg.Chat.VerifyToken == "" {
		log.Println("WARNING: CHAT_VERIFY_TOKEN not set. Webhook verification will reject all handshakes.")
	}

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
