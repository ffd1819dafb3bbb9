package models

import "time"

// Plan is a subscriber's pricing tier. It determines daily rate-limit caps
// and access to premium features (audio digests, deep-dive analysis).
type Plan string

const (
	PlanBase    Plan = "base"
	PlanPremium Plan = "premium"
	PlanBeta    Plan = "beta"
)

// IsValid reports whether p is a known plan.
func (p Plan) IsValid() bool {
	switch p {
	case PlanBase, PlanPremium, PlanBeta:
		return true
	}
	return false
}

// OnboardingState is the subscriber's position in the guided setup
// conversation. new_lead is the only initial state; active is the only state
// from which digest delivery is permitted.
type OnboardingState string

const (
	StateNewLead            OnboardingState = "new_lead"
	StateSelectingInterests OnboardingState = "selecting_interests"
	StateSelectingProfile   OnboardingState = "selecting_profile"
	StateSelectingTone      OnboardingState = "selecting_tone"
	StateDemoSent           OnboardingState = "demo_sent"
	StateAwaitingPayment    OnboardingState = "awaiting_payment"
	StateActive             OnboardingState = "active"
	StateConfiguring        OnboardingState = "configuring"
	StateConfigSchedule     OnboardingState = "config_schedule"
	StateConfigInterests    OnboardingState = "config_interests"
)

// ProfileTag captures how the subscriber reads news; it calibrates summary
// depth downstream.
type ProfileTag string

const (
	ProfileCurious      ProfileTag = "curious"
	ProfileProfessional ProfileTag = "professional"
	ProfileInvestor     ProfileTag = "investor"
)

// Tone selects the register of generated content.
type Tone string

const (
	ToneFormal Tone = "formal"
	ToneCasual Tone = "casual"
)

// OnboardingPayload is the transient scratch data the state machine writes
// while walking a lead through setup. Fields are only meaningful in the
// states that set them; the transition table is the sole writer.
type OnboardingPayload struct {
	SelectedInterests []Category `json:"selected_interests,omitempty"`
	Profile           ProfileTag `json:"profile,omitempty"`
	Tone              Tone       `json:"tone,omitempty"`
	PendingPlan       Plan       `json:"pending_plan,omitempty"`
}

type Subscriber struct {
	ID              string            `json:"id"`
	PhoneNumber     string            `json:"phone_number"` // globally unique contact key
	Name            string            `json:"name"`
	Plan            Plan              `json:"plan"`
	Interests       []Category        `json:"interests"`
	OnboardingState OnboardingState   `json:"onboarding_state"`
	Onboarding      OnboardingPayload `json:"onboarding_data"`
	Profile         ProfileTag        `json:"profile,omitempty"`
	Tone            Tone              `json:"tone,omitempty"`
	DailyMessages   int               `json:"daily_message_count"`
	DailyAICalls    int               `json:"daily_ai_count"`
	LastResetAt     time.Time         `json:"last_reset_at"`
	PreferredTimes  []string          `json:"preferred_times"` // "HH:MM", ordered
	Active          bool              `json:"is_active"`
	NPSScore        *int              `json:"nps_score,omitempty"`
	LastMessageAt   *time.Time        `json:"last_message_at,omitempty"`
	LastFeedbackAt  *time.Time        `json:"last_feedback_at,omitempty"`
	LastNPSAt       *time.Time        `json:"last_nps_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// DefaultPreferredTimes is the delivery schedule assigned to new subscribers
// until they configure their own.
var DefaultPreferredTimes = []string{"07:00", "19:00"}

// InterestedIn reports whether the subscriber follows the given category.
func (s *Subscriber) InterestedIn(c Category) bool {
	for _, interest := range s.Interests {
		if interest == c {
			return true
		}
	}
	return false
}
