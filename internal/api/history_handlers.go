package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/service/delivery"
)

// HandleGetDelivery returns a single delivery record.
//
//	GET /api/deliveries/{recordID}
func (h *Handlers) HandleGetDelivery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")

	rec, err := h.deliveries.Get(r.Context(), id)
	if errors.Is(err, delivery.ErrNotFound) {
		respondError(w, http.StatusNotFound, "delivery not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// HandleCampaignDeliveries returns a campaign's delivery history, newest
// first.
//
//	GET /api/campaigns/{campaignID}/deliveries?limit=&offset=
func (h *Handlers) HandleCampaignDeliveries(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	records, err := h.deliveries.History(r.Context(), campaignID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": campaignID,
		"deliveries":  records,
		"count":       len(records),
	})
}

// HandleCampaignStats returns per-status aggregate counts for a campaign.
// Test sends are excluded from every aggregate.
//
//	GET /api/campaigns/{campaignID}/stats
func (h *Handlers) HandleCampaignStats(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	counts, err := h.stats.CampaignCounts(r.Context(), campaignID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": campaignID,
		"counts":      counts,
	})
}

// HandleRecipientDeliveries returns one recipient's delivery history across
// campaigns.
//
//	GET /api/recipients/{email}/deliveries?limit=
func (h *Handlers) HandleRecipientDeliveries(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	limit := queryInt(r, "limit", 100)

	records, err := h.deliveries.RecipientHistory(r.Context(), email, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recipient":  email,
		"deliveries": records,
		"count":      len(records),
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
