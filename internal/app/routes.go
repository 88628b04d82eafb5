package app

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"paypal-gateway/internal/common/ratelimit"
	"paypal-gateway/internal/handlers"
	"paypal-gateway/internal/middleware"
)

// SetupRoutes configures all HTTP routes for the application. authMiddleware
// and rateLimiter may be nil, leaving the operator API open or unthrottled.
func SetupRoutes(router *mux.Router, webhookPath string, dispatcher http.Handler, h *handlers.Handlers, authMiddleware func(http.Handler) http.Handler, rateLimiter ratelimit.Limiter) {
	router.Use(middleware.Recover)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware)

	// PayPal deliveries authenticate by signature, not operator token
	router.Handle(webhookPath, dispatcher).Methods(http.MethodPost)

	// Health check (no auth required)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	// Swagger UI (no auth required)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	api := router.PathPrefix("/api").Subrouter()
	if rateLimiter != nil {
		api.Use(ratelimit.HTTPMiddleware(rateLimiter, ratelimit.IPKey))
	}
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}

	api.HandleFunc("/webhooks", h.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/webhooks", h.Unregister).Methods(http.MethodDelete)
	api.HandleFunc("/webhooks/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/webhooks/simulation", h.StartSimulation).Methods(http.MethodPost)
	api.HandleFunc("/webhooks/simulation", h.GetSimulation).Methods(http.MethodGet)
	api.HandleFunc("/auth/token", h.InvalidateToken).Methods(http.MethodDelete)
}
