package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/service/delivery"
)

type providerEventRequest struct {
	MessageID string `json:"message_id"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HandleProviderWebhook ingests delivery notifications from the active
// provider, correlated by the provider-assigned message ID.
//
//	POST /api/webhooks/provider
func (h *Handlers) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	var req providerEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.MessageID == "" {
		respondError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	var event delivery.Event
	switch req.Event {
	case "delivered":
		event = delivery.EventDelivered
	case "bounced", "bounce":
		event = delivery.EventBounced
	default:
		respondError(w, http.StatusBadRequest, "unsupported event: "+req.Event)
		return
	}

	at := time.Now().UTC()
	if req.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			at = parsed.UTC()
		}
	}

	err := h.deliveries.ApplyProviderEvent(r.Context(), req.MessageID, event, at)
	if errors.Is(err, delivery.ErrNotFound) {
		// Unknown message IDs are acknowledged, not retried: the provider
		// may replay events for sends that predate this datastore.
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// HandleMarkReplied flags a delivery as replied, the terminal positive
// engagement state.
//
//	POST /api/deliveries/{recordID}/replied
func (h *Handlers) HandleMarkReplied(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")

	err := h.deliveries.MarkReplied(r.Context(), id)
	if errors.Is(err, delivery.ErrNotFound) {
		respondError(w, http.StatusNotFound, "delivery not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
