package models

import "time"

// FeedbackType classifies a feedback event.
type FeedbackType string

const (
	FeedbackNPS            FeedbackType = "nps"
	FeedbackInactivity     FeedbackType = "inactivity" // implicit churn probe
	FeedbackBugReport      FeedbackType = "bug_report"
	FeedbackFeatureRequest FeedbackType = "feature_request"
	FeedbackQuality        FeedbackType = "content_quality"
)

type FeedbackEvent struct {
	ID           string       `json:"id"`
	SubscriberID string       `json:"subscriber_id"`
	Type         FeedbackType `json:"type"`
	Score        *int         `json:"score,omitempty"` // 0-10 for NPS, 1-3 for inactivity
	Comment      string       `json:"comment,omitempty"`
	Resolved     bool         `json:"resolved"`
	CreatedAt    time.Time    `json:"created_at"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`
}
