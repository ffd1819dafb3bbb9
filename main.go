package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/tindim/tindim/api"
	"github.com/tindim/tindim/audio"
	"github.com/tindim/tindim/chat"
	"github.com/tindim/tindim/config"
	"github.com/tindim/tindim/curation"
	"github.com/tindim/tindim/datastore"
	"github.com/tindim/tindim/digest"
	"github.com/tindim/tindim/feedback"
	"github.com/tindim/tindim/ingestion"
	"github.com/tindim/tindim/onboarding"
	"github.com/tindim/tindim/ratelimit"
	"github.com/tindim/tindim/scheduler"
	"github.com/tindim/tindim/summarize"
	"github.com/tindim/tindim/transport"
	"github.com/tindim/tindim/webhooks"
)

const (
	dbPingTimeout     = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
	dbMaxOpenConns    = 25
	dbMaxIdleConns    = 25
	dbConnMaxLifetime = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	db, err := setupDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	defer db.Close()

	subscriberRepo := datastore.NewSubscriberRepository(db)
	articleRepo := datastore.NewArticleRepository(db)
	conversationRepo := datastore.NewConversationRepository(db)
	dispatchRepo := datastore.NewDispatchRepository(db)
	feedbackRepo := datastore.NewFeedbackRepository(db)

	sender := transport.NewGraphClient(cfg.Chat)
	composer := digest.NewComposer()
	limiter := ratelimit.NewLimiter(subscriberRepo)

	pipeline := ingestion.NewPipeline(
		feedSources(cfg.Curation.Feeds),
		curation.NewPreFilter(),
		curation.NewValidator(),
		curation.NewScorer(cfg.Curation.PremiumSources),
		summarize.NewClient(cfg.Summarizer),
		articleRepo,
	)

	onboardingMachine := onboarding.NewMachine(subscriberRepo, articleRepo, composer, sender)
	feedbackService := feedback.NewService(subscriberRepo, feedbackRepo, sender)
	chatService := chat.NewService(
		subscriberRepo,
		conversationRepo,
		articleRepo,
		limiter,
		onboardingMachine,
		feedbackService,
		chat.NewAssistantClient(cfg.Summarizer),
		sender,
	)
	audioService := audio.NewService(subscriberRepo, articleRepo, dispatchRepo, audio.NewSpeechClient(cfg.Speech), sender)

	jobScheduler := scheduler.New(
		cfg.Schedule,
		subscriberRepo,
		dispatchRepo,
		articleRepo,
		composer,
		sender,
		pipeline,
		audioService,
		feedbackService,
		limiter,
	)
	if err := jobScheduler.Start(); err != nil {
		log.Fatalf("Scheduler startup failed: %v", err)
	}
	defer jobScheduler.Stop()

	router := api.SetupRoutes(
		webhooks.NewChatWebhookHandler(cfg.Chat.VerifyToken, chatService),
		webhooks.NewBillingWebhookHandler(chatService, onboardingMachine),
		api.NewAdminHandler(pipeline, limiter, subscriberRepo, feedbackService),
	)

	startServer(cfg.Port, router)
}

// feedSources builds a named source per configured feed URL, keyed by host so
// log lines stay readable.
func feedSources(feeds []string) []ingestion.Source {
	sources := make([]ingestion.Source, 0, len(feeds))
	for _, feed := range feeds {
		name := feed
		if parsed, err := url.Parse(feed); err == nil && parsed.Host != "" {
			name = parsed.Host
		}
		sources = append(sources, ingestion.NewFeedSource(name, feed))
	}
	return sources
}

func setupDatabase(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection successful")
	return db, nil
}

func startServer(port string, router http.Handler) {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownSignal
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
