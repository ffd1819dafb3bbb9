package models

import "time"

// DispatchJob names a per-subscriber scheduled job family.
type DispatchJob string

// The feedback and NPS jobs do not claim through the dispatch log; their
// idempotence rides on the last_feedback_at / last_nps_at stamps.
const (
	JobDigest DispatchJob = "digest"
	JobAudio  DispatchJob = "audio"
)

// Dispatch records one claimed (subscriber, job, date, slot) send. The row is
// inserted before sending; a unique constraint over those four columns is what
// makes scheduler ticks idempotent across restarts and overlapping runs.
type Dispatch struct {
	ID           string      `json:"id"`
	SubscriberID string      `json:"subscriber_id"`
	Job          DispatchJob `json:"job"`
	Date         string      `json:"date"` // calendar date, "2006-01-02"
	Slot         string      `json:"slot"` // "HH:MM" for digests, "daily" for briefings
	CreatedAt    time.Time   `json:"created_at"`
}
