package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"paypal-gateway/internal/common/ratelimit"
	"paypal-gateway/internal/handlers"
	"paypal-gateway/internal/server"
)

// Router builds the HTTP handler for the application
func (app *App) Router() http.Handler {
	checks := map[string]handlers.HealthCheck{
		"storage": app.Storage.Health,
	}
	if app.RedisClient != nil {
		checks["redis"] = app.RedisClient.Health
	}

	h := handlers.New(app.Registrar, app.Simulations, app.Authenticator, checks, Version)

	var authMiddleware func(http.Handler) http.Handler
	if app.OperatorAuth != nil {
		authMiddleware = app.OperatorAuth.RequireBearer
	}

	var limiter ratelimit.Limiter
	if app.RateLimiter != nil {
		limiter = app.RateLimiter
	}

	router := mux.NewRouter()
	SetupRoutes(router, app.Config.WebhookPath, app.Dispatcher, h, authMiddleware, limiter)
	return router
}

// NewServer creates the HTTP server for the application
func (app *App) NewServer() *server.Server {
	return server.New(app.Router(), app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile)
}
