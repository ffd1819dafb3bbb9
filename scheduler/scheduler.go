// Package scheduler owns all proactive work: periodic ingestion, per-minute
// digest dispatch against each subscriber's preferred times, the audio and
// feedback jobs, and the daily counter reset. Jobs are independent; one
// running long never blocks another's tick.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tindim/tindim/config"
	"github.com/tindim/tindim/datastore"
	"github.com/tindim/tindim/digest"
	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/transport"
)

const (
	jobTimeout     = 10 * time.Minute
	digestLookback = 24 * time.Hour
	digestLimit    = 30
)

// SubscriberSource lists the audience for per-subscriber jobs.
type SubscriberSource interface {
	ListActiveBySlot(ctx context.Context, slot string) ([]models.Subscriber, error)
}

// DispatchClaimer is the idempotence gate: it admits a (subscriber, job,
// date, slot) key exactly once.
type DispatchClaimer interface {
	TryClaim(ctx context.Context, subscriberID string, job models.DispatchJob, date, slot string) (bool, error)
}

// ArticleLister supplies digest content.
type ArticleLister interface {
	ListAccepted(ctx context.Context, filter datastore.AcceptedFilter) ([]models.Article, error)
}

// IngestionRunner is the article intake cycle.
type IngestionRunner interface {
	Run(ctx context.Context) error
}

// AudioBriefer sends the daily narrated briefings.
type AudioBriefer interface {
	SendDailyBriefings(ctx context.Context) error
}

// FeedbackJobs are the two probe variants of the daily feedback job.
type FeedbackJobs interface {
	SendInactivityProbes(ctx context.Context, now time.Time) error
	SendNPSSurveys(ctx context.Context, now time.Time) error
}

// CounterResetter zeroes daily usage counters.
type CounterResetter interface {
	Reset(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron        *cron.Cron
	schedule    config.ScheduleConfig
	subscribers SubscriberSource
	dispatches  DispatchClaimer
	articles    ArticleLister
	composer    *digest.Composer
	sender      transport.Sender
	ingestion   IngestionRunner
	audio       AudioBriefer
	feedback    FeedbackJobs
	limiter     CounterResetter
}

func New(
	schedule config.ScheduleConfig,
	subscribers SubscriberSource,
	dispatches DispatchClaimer,
	articles ArticleLister,
	composer *digest.Composer,
	sender transport.Sender,
	ingestion IngestionRunner,
	audio AudioBriefer,
	feedback FeedbackJobs,
	limiter CounterResetter,
) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		schedule:    schedule,
		subscribers: subscribers,
		dispatches:  dispatches,
		articles:    articles,
		composer:    composer,
		sender:      sender,
		ingestion:   ingestion,
		audio:       audio,
		feedback:    feedback,
		limiter:     limiter,
	}
}

// Start registers every job and launches the cron loop. Each entry runs in
// its own goroutine, so a slow ingestion pass cannot delay digest ticks.
func (s *Scheduler) Start() error {
	entries := []struct {
		spec string
		name string
		run  func(ctx context.Context)
	}{
		{s.schedule.IngestionCron, "ingestion", s.runIngestion},
		{"* * * * *", "digest", func(ctx context.Context) { s.DigestTick(ctx, time.Now()) }},
		{timeOfDayCron(s.schedule.AudioTime), "audio", s.runAudio},
		{timeOfDayCron(s.schedule.FeedbackTime), "feedback", s.runFeedback},
		{timeOfDayCron(s.schedule.ResetTime), "reset", s.runReset},
	}

	for _, entry := range entries {
		run := entry.run
		_, err := s.cron.AddFunc(entry.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			run(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to register %s job (%q): %w", entry.name, entry.spec, err)
		}
		log.Printf("INFO (Scheduler): registered %s job at %q", entry.name, entry.spec)
	}

	s.cron.Start()
	log.Println("INFO (Scheduler): started.")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("INFO (Scheduler): stopped.")
}

func (s *Scheduler) runIngestion(ctx context.Context) {
	log.Println("INFO (Scheduler): ingestion cycle starting...")
	if err := s.ingestion.Run(ctx); err != nil {
		log.Printf("ERROR (Scheduler): ingestion cycle failed: %v", err)
	}
}

func (s *Scheduler) runAudio(ctx context.Context) {
	if err := s.audio.SendDailyBriefings(ctx); err != nil {
		log.Printf("ERROR (Scheduler): audio briefings failed: %v", err)
	}
}

func (s *Scheduler) runFeedback(ctx context.Context) {
	s.FeedbackTick(ctx, time.Now())
}

// FeedbackTick picks the variant by weekday: the NPS survey goes out on
// Fridays, the inactivity probe on every other day.
func (s *Scheduler) FeedbackTick(ctx context.Context, now time.Time) {
	var err error
	if now.Weekday() == time.Friday {
		err = s.feedback.SendNPSSurveys(ctx, now)
	} else {
		err = s.feedback.SendInactivityProbes(ctx, now)
	}
	if err != nil {
		log.Printf("ERROR (Scheduler): feedback job failed: %v", err)
	}
}

func (s *Scheduler) runReset(ctx context.Context) {
	affected, err := s.limiter.Reset(ctx, time.Now())
	if err != nil {
		log.Printf("ERROR (Scheduler): daily counter reset failed: %v", err)
		return
	}
	log.Printf("INFO (Scheduler): daily counters reset for %d subscribers", affected)
}

// DigestTick is the per-minute dispatch pass: it finds active subscribers
// whose preferred times include the current slot, claims each (subscriber,
// date, slot) exactly once, and delivers their digests in parallel. One
// subscriber's failure never blocks the others.
func (s *Scheduler) DigestTick(ctx context.Context, now time.Time) {
	slot := now.Format("15:04")
	date := now.Format("2006-01-02")

	subs, err := s.subscribers.ListActiveBySlot(ctx, slot)
	if err != nil {
		log.Printf("ERROR (Scheduler): failed to list subscribers for slot %s: %v", slot, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	log.Printf("INFO (Scheduler): digest slot %s matches %d subscribers", slot, len(subs))

	var wg sync.WaitGroup
	for i := range subs {
		sub := subs[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.dispatches.TryClaim(ctx, sub.ID, models.JobDigest, date, slot)
			if err != nil {
				log.Printf("ERROR (Scheduler): claim failed for subscriber %s: %v", sub.ID, err)
				return
			}
			if !claimed {
				return
			}
			if err := s.sendDigest(ctx, &sub, now); err != nil {
				log.Printf("WARN (Scheduler): digest delivery failed for subscriber %s: %v", sub.ID, err)
			}
		}()
	}
	wg.Wait()
}

func (s *Scheduler) sendDigest(ctx context.Context, sub *models.Subscriber, now time.Time) error {
	articles, err := s.articles.ListAccepted(ctx, datastore.AcceptedFilter{
		Since:      now.Add(-digestLookback),
		Categories: sub.Interests,
		Limit:      digestLimit,
	})
	if err != nil {
		return err
	}

	messages := s.composer.Compose(sub, articles)
	if len(messages) == 0 {
		log.Printf("INFO (Scheduler): nothing to send to subscriber %s this slot", sub.ID)
		return nil
	}

	if err := s.sender.SendText(ctx, sub.PhoneNumber, s.composer.WelcomeMessage(sub.Name, now)); err != nil {
		return err
	}
	for _, msg := range messages {
		if err := s.sender.SendText(ctx, sub.PhoneNumber, msg.Body); err != nil {
			return err
		}
	}
	return nil
}

// timeOfDayCron turns "HH:MM" into a daily cron expression, falling back to
// midnight on malformed input.
func timeOfDayCron(timeOfDay string) string {
	parsed, err := time.Parse("15:04", strings.TrimSpace(timeOfDay))
	if err != nil {
		return "0 0 * * *"
	}
	return fmt.Sprintf("%d %d * * *", parsed.Minute(), parsed.Hour())
}
