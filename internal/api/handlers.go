package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/campaign-dispatch/internal/service/delivery"
	"github.com/ignite/campaign-dispatch/internal/tracking"
	"github.com/ignite/campaign-dispatch/internal/worker"
)

// StatsProvider supplies per-campaign aggregate counts.
type StatsProvider interface {
	CampaignCounts(ctx context.Context, campaignID string) (map[string]int, error)
}

// Handlers holds the HTTP handler dependencies. dispatcher is nil when no
// email provider is configured; send endpoints then answer 503 while the
// tracking and history surface stays available.
type Handlers struct {
	dispatcher *worker.Dispatcher
	deliveries *delivery.Service
	stats      StatsProvider
	tracking   *tracking.Handler

	mu         sync.Mutex
	dispatches map[string]*worker.Dispatch
	retention  time.Duration
}

// NewHandlers creates the handler set.
func NewHandlers(dispatcher *worker.Dispatcher, deliveries *delivery.Service, stats StatsProvider, trackingHandler *tracking.Handler) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		deliveries: deliveries,
		stats:      stats,
		tracking:   trackingHandler,
		dispatches: make(map[string]*worker.Dispatch),
		retention:  5 * time.Minute,
	}
}

// SetProgressRetention overrides how long a completed dispatch stays
// pollable before its handle is dropped.
func (h *Handlers) SetProgressRetention(d time.Duration) {
	if d > 0 {
		h.retention = d
	}
}

// HealthCheck reports liveness and whether sending is configured.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"sender_configured": h.dispatcher != nil,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
