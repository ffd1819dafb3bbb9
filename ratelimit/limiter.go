// Package ratelimit enforces per-plan daily usage caps. Denial is a normal
// control-flow outcome with a user-facing deflection, never an error.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/tindim/tindim/models"
)

// CounterKind selects which of the two independent daily counters an action
// charges against.
type CounterKind string

const (
	KindMessage CounterKind = "message"
	KindAI      CounterKind = "ai"
)

func (k CounterKind) column() string {
	if k == KindAI {
		return "daily_ai_count"
	}
	return "daily_message_count"
}

// Caps are the daily limits for one plan.
type Caps struct {
	Messages int
	AICalls  int
}

var planCaps = map[models.Plan]Caps{
	models.PlanBase:    {Messages: 100, AICalls: 10},
	models.PlanPremium: {Messages: 300, AICalls: 30},
	models.PlanBeta:    {Messages: 500, AICalls: 50},
}

// CapsFor returns the caps for a plan, falling back to the base plan for
// unknown values.
func CapsFor(plan models.Plan) Caps {
	if caps, ok := planCaps[plan]; ok {
		return caps
	}
	return planCaps[models.PlanBase]
}

func (c Caps) limit(kind CounterKind) int {
	if kind == KindAI {
		return c.AICalls
	}
	return c.Messages
}

// Decision is the outcome of a limit check. Deflection is only set when the
// action was denied.
type Decision struct {
	Allowed    bool
	Deflection string
}

// CounterStore performs the atomic conditional increment at the storage
// boundary. The bool result reports whether the increment was admitted.
type CounterStore interface {
	TryIncrementCounter(ctx context.Context, subscriberID, counterColumn string, cap int) (bool, error)
	ResetDailyCounters(ctx context.Context, now time.Time) (int64, error)
}

type Limiter struct {
	counters CounterStore
}

func NewLimiter(counters CounterStore) *Limiter {
	return &Limiter{counters: counters}
}

// Check is a read-only preview against the in-memory counters. It can admit
// an action a concurrent request already consumed; Allow is the authoritative
// gate.
func (l *Limiter) Check(sub *models.Subscriber, kind CounterKind) Decision {
	caps := CapsFor(sub.Plan)
	used := sub.DailyMessages
	if kind == KindAI {
		used = sub.DailyAICalls
	}
	if used < caps.limit(kind) {
		return Decision{Allowed: true}
	}
	return Decision{Deflection: deflection(sub.Plan, kind)}
}

// Allow charges one action atomically: the increment and the cap comparison
// happen in a single conditional update, so two near-simultaneous requests
// cannot both pass a check that should admit only one.
func (l *Limiter) Allow(ctx context.Context, sub *models.Subscriber, kind CounterKind) (Decision, error) {
	caps := CapsFor(sub.Plan)
	admitted, err := l.counters.TryIncrementCounter(ctx, sub.ID, kind.column(), caps.limit(kind))
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit update failed: %w", err)
	}
	if !admitted {
		return Decision{Deflection: deflection(sub.Plan, kind)}, nil
	}
	return Decision{Allowed: true}, nil
}

// Reset zeroes the daily counters for every subscriber whose last reset
// precedes the current day. Safe to run more than once per day.
func (l *Limiter) Reset(ctx context.Context, now time.Time) (int64, error) {
	return l.counters.ResetDailyCounters(ctx, now)
}

func deflection(plan models.Plan, kind CounterKind) string {
	upgradeHint := ""
	if plan == models.PlanBase {
		upgradeHint = "\n\n🚀 The *Premium* plan raises your daily limits. Send *settings* to learn more."
	}
	if kind == KindAI {
		return "🤖 You've used all your AI conversations for today. They reset tomorrow!" + upgradeHint
	}
	return "✋ You've reached today's message limit. See you tomorrow!" + upgradeHint
}
