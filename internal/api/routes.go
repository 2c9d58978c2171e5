package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Tracking endpoints live at the root so pixel/redirect URLs stay short.
	if h.tracking != nil {
		r.Mount("/", h.tracking.Routes())
	}

	r.Route("/api", func(r chi.Router) {
		// Sending
		r.Post("/dispatch", h.HandleDispatch)
		r.Post("/dispatch/async", h.HandleDispatchAsync)
		r.Get("/dispatch/{dispatchID}/progress", h.HandleDispatchProgress)
		r.Post("/verify", h.HandleVerify)

		// Provider callbacks and reply detection
		r.Post("/webhooks/provider", h.HandleProviderWebhook)
		r.Post("/deliveries/{recordID}/replied", h.HandleMarkReplied)

		// History
		r.Get("/deliveries/{recordID}", h.HandleGetDelivery)
		r.Get("/campaigns/{campaignID}/deliveries", h.HandleCampaignDeliveries)
		r.Get("/campaigns/{campaignID}/stats", h.HandleCampaignStats)
		r.Get("/recipients/{email}/deliveries", h.HandleRecipientDeliveries)
	})

	return r
}
