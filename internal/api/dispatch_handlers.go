package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/worker"
)

// HandleDispatch runs a bulk send synchronously and returns the per-recipient
// outcomes once every chunk has been processed.
//
//	POST /api/dispatch
func (h *Handlers) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDispatchRequest(w, r)
	if !ok {
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), *req)
	if err != nil {
		h.respondDispatchError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleDispatchAsync starts a bulk send in the background and returns a
// dispatch ID for progress polling.
//
//	POST /api/dispatch/async
func (h *Handlers) HandleDispatchAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDispatchRequest(w, r)
	if !ok {
		return
	}

	// Begin detaches the pipeline from request cancellation; the dispatch
	// outlives this request.
	handle, err := h.dispatcher.Begin(r.Context(), *req)
	if err != nil {
		h.respondDispatchError(w, err)
		return
	}

	h.mu.Lock()
	h.dispatches[handle.ID] = handle
	h.mu.Unlock()

	// Completed handles retain every per-recipient outcome; evict after a
	// grace window so pollers can read the final snapshot but the registry
	// does not grow for the process lifetime.
	go func() {
		<-handle.Done()
		time.Sleep(h.retention)
		h.mu.Lock()
		delete(h.dispatches, handle.ID)
		h.mu.Unlock()
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"dispatch_id": handle.ID,
		"progress":    handle.Progress(),
	})
}

// HandleDispatchProgress returns the current progress snapshot for an
// in-flight or completed dispatch.
//
//	GET /api/dispatch/{dispatchID}/progress
func (h *Handlers) HandleDispatchProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "dispatchID")

	h.mu.Lock()
	handle, ok := h.dispatches[id]
	h.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "unknown dispatch")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dispatch_id": id,
		"progress":    handle.Progress(),
	})
}

func (h *Handlers) decodeDispatchRequest(w http.ResponseWriter, r *http.Request) (*worker.DispatchRequest, bool) {
	if h.dispatcher == nil {
		respondError(w, http.StatusServiceUnavailable, "email sending is not configured")
		return nil, false
	}

	var req worker.DispatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	if len(req.Recipients) == 0 {
		respondError(w, http.StatusBadRequest, "recipients are required")
		return nil, false
	}
	return &req, true
}

func (h *Handlers) respondDispatchError(w http.ResponseWriter, err error) {
	var nve *worker.NoValidRecipientsError
	switch {
	case errors.Is(err, worker.ErrNoSenderConfigured):
		respondError(w, http.StatusServiceUnavailable, "email sending is not configured")
	case errors.As(err, &nve):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":          "no valid recipients",
			"invalid_emails": nve.Invalid,
		})
	case errors.Is(err, worker.ErrMissingSubject), errors.Is(err, worker.ErrMissingContent):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
