package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tindim/tindim/datastore"
	"github.com/tindim/tindim/models"
	"github.com/tindim/tindim/webutil"
)

const defaultBugListLimit = 50

// IngestionTrigger runs one article intake cycle on demand.
type IngestionTrigger interface {
	Run(ctx context.Context) error
}

// CounterResetter zeroes the daily usage counters on demand.
type CounterResetter interface {
	Reset(ctx context.Context, now time.Time) (int64, error)
}

// UsageReader supplies the aggregated usage snapshot.
type UsageReader interface {
	GetUsageStats(ctx context.Context) (*datastore.UsageStats, error)
}

// BugTracker exposes the reported-bug queue to operators.
type BugTracker interface {
	PendingBugs(ctx context.Context, limit int) ([]models.FeedbackEvent, error)
	ResolveBug(ctx context.Context, eventID string) error
}

// AdminHandler serves the operator endpoints: manual job triggers and the
// bug queue. These sit behind the deployment's network boundary, not
// end-user auth.
type AdminHandler struct {
	ingestion IngestionTrigger
	limiter   CounterResetter
	usage     UsageReader
	bugs      BugTracker
}

func NewAdminHandler(ingestion IngestionTrigger, limiter CounterResetter, usage UsageReader, bugs BugTracker) *AdminHandler {
	return &AdminHandler{ingestion: ingestion, limiter: limiter, usage: usage, bugs: bugs}
}

func (h *AdminHandler) HandleRunIngestion(w http.ResponseWriter, r *http.Request) error {
	if err := h.ingestion.Run(r.Context()); err != nil {
		return webutil.ErrInternalServerWrap("Ingestion cycle failed", err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	return nil
}

func (h *AdminHandler) HandleResetCounters(w http.ResponseWriter, r *http.Request) error {
	affected, err := h.limiter.Reset(r.Context(), time.Now())
	if err != nil {
		return webutil.ErrInternalServerWrap("Counter reset failed", err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]int64{"subscribers_reset": affected})
	return nil
}

func (h *AdminHandler) HandleGetUsageStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.usage.GetUsageStats(r.Context())
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, stats)
	return nil
}

func (h *AdminHandler) HandleGetPendingBugs(w http.ResponseWriter, r *http.Request) error {
	limit := defaultBugListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return webutil.ErrBadRequest("limit must be a positive integer")
		}
		limit = parsed
	}

	bugs, err := h.bugs.PendingBugs(r.Context(), limit)
	if err != nil {
		return err
	}
	if bugs == nil {
		bugs = []models.FeedbackEvent{}
	}
	webutil.RespondWithJSON(w, http.StatusOK, bugs)
	return nil
}

func (h *AdminHandler) HandleResolveBug(w http.ResponseWriter, r *http.Request) error {
	eventID := chi.URLParam(r, paramID)
	if eventID == "" {
		return webutil.ErrBadRequest("Missing bug ID")
	}
	if err := h.bugs.ResolveBug(r.Context(), eventID); err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
	return nil
}
