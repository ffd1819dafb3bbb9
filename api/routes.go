package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tindim/tindim/webhooks"
	"github.com/tindim/tindim/webutil"
)

const (
	chatWebhookPath    = "/webhooks/chat"
	billingWebhookPath = "/webhooks/billing"

	adminBasePath     = "/admin"
	ingestionSubPath  = "/ingestion/run"
	resetSubPath      = "/counters/reset"
	statsSubPath      = "/stats"
	bugsSubPath       = "/bugs"
	resolveBugSubPath = "/bugs/{id}/resolve"
)

const paramID = "id"

func SetupRoutes(
	chatWebhook *webhooks.ChatWebhookHandler,
	billingWebhook *webhooks.BillingWebhookHandler,
	adminHandler *AdminHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get(chatWebhookPath, webutil.MakeHandler(chatWebhook.HandleVerify))
	r.Post(chatWebhookPath, webutil.MakeHandler(chatWebhook.HandleReceive))
	r.Post(billingWebhookPath, webutil.MakeHandler(billingWebhook.HandlePaymentEvent))

	r.Route(adminBasePath, func(r chi.Router) {
		r.Post(ingestionSubPath, webutil.MakeHandler(adminHandler.HandleRunIngestion))
		r.Post(resetSubPath, webutil.MakeHandler(adminHandler.HandleResetCounters))
		r.Get(statsSubPath, webutil.MakeHandler(adminHandler.HandleGetUsageStats))
		r.Get(bugsSubPath, webutil.MakeHandler(adminHandler.HandleGetPendingBugs))
		r.Post(resolveBugSubPath, webutil.MakeHandler(adminHandler.HandleResolveBug))
	})

	r.Get("/healthz", handleHealthCheck)

	return r
}

func handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
