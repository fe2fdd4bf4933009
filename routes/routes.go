package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/site-control-plane/app"
	"github.com/upb/site-control-plane/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Owner-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request/response endpoints get the request timeout
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health check endpoints
		r.Get("/healthz", handlers.HealthCheck(deps))
		r.Get("/readyz", handlers.ReadinessCheck(deps))

		// Capability manifest
		r.Get("/capabilities", handlers.CapabilitiesHandler(deps))

		// Owner command gateway
		r.Group(func(r chi.Router) {
			r.Use(deps.OwnerAuth.RequireOwner)
			r.Post("/execute", handlers.ExecuteHandler(deps))
		})

		// Audit endpoints
		r.Route("/audit", func(r chi.Router) {
			r.Post("/log", handlers.LogAuditEventHandler(deps))
			r.Get("/list", handlers.ListAuditEventsHandler(deps))
		})
	})

	// Session actor endpoint: POST ?action=patch_apply or websocket upgrade.
	// Websocket connections outlive any request timeout, so the actor routes
	// skip the Timeout middleware.
	r.HandleFunc("/actor", handlers.ActorHandler(deps))
	r.HandleFunc("/actor/{key}", handlers.ActorHandler(deps))

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
