// Package tracking serves the engagement endpoints referenced from sent
// emails: the open pixel and the click redirect. Both are best-effort
// recorders; a tracking failure never degrades the recipient's experience.
package tracking

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Recorder receives engagement events keyed by delivery record ID.
type Recorder interface {
	RecordOpen(ctx context.Context, recordID string, at time.Time) error
	RecordClick(ctx context.Context, recordID string, at time.Time) error
}

// Handler serves /track/open/{id} and /track/click/{id}.
type Handler struct {
	recorder    Recorder
	fallbackURL string
}

// NewHandler creates a tracking handler. fallbackURL is where click
// redirects land when the target URL is missing or unusable.
func NewHandler(recorder Recorder, fallbackURL string) *Handler {
	if fallbackURL == "" {
		fallbackURL = "/"
	}
	return &Handler{recorder: recorder, fallbackURL: fallbackURL}
}

// Routes mounts the tracking endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open/{recordID}", h.HandleOpen)
	r.Get("/track/click/{recordID}", h.HandleClick)
	return r
}

// HandleOpen records an open and serves the pixel. The pixel is served on
// every path, including unknown record IDs and datastore failures, so a
// broken tracking row never shows as a broken image in the email client.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	if recordID != "" {
		if err := h.recorder.RecordOpen(r.Context(), recordID, time.Now().UTC()); err != nil {
			log.Printf("[Tracking] open record failed for %s (ip=%s): %v", recordID, realIP(r), err)
		} else {
			log.Printf("[Tracking] OPEN record=%s", recordID)
		}
	}
	h.servePixel(w)
}

// HandleClick records a click and redirects to the original URL from the
// url query parameter. The redirect always happens: recording failures,
// unknown records, and even a missing or unsafe url parameter (which falls
// back to the configured landing page) must not strand the recipient.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	target := h.clickTarget(r.URL.Query().Get("url"))

	if recordID != "" {
		if err := h.recorder.RecordClick(r.Context(), recordID, time.Now().UTC()); err != nil {
			log.Printf("[Tracking] click record failed for %s (ip=%s): %v", recordID, realIP(r), err)
		} else {
			log.Printf("[Tracking] CLICK record=%s url=%s", recordID, target)
		}
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// clickTarget validates the redirect destination. Only absolute http(s)
// URLs pass; anything else goes to the fallback so the endpoint cannot be
// used as an open redirector for javascript: or data: schemes.
func (h *Handler) clickTarget(raw string) string {
	if raw == "" {
		return h.fallbackURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return h.fallbackURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return h.fallbackURL
	}
	if u.Host == "" {
		return h.fallbackURL
	}
	return u.String()
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
