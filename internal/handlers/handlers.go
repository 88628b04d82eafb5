// Package handlers serves the operator API: webhook registration status and
// control, event simulations, bearer token invalidation and health checks.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/webhooks"
)

// Registrar controls the PayPal webhook subscription
type Registrar interface {
	Descriptor() webhooks.Subscription
	Register(ctx context.Context) bool
	Unregister(ctx context.Context) bool
	Subscription(ctx context.Context) (*webhooks.Subscription, error)
	LastFailure(ctx context.Context) (*webhooks.RegistrationFailure, error)
	NextRetry() (time.Time, bool)
}

// Simulations starts and reports on simulated deliveries
type Simulations interface {
	Start(ctx context.Context) (*webhooks.SimulationRecord, error)
	Record(ctx context.Context) (*webhooks.SimulationRecord, error)
}

// TokenInvalidator drops the cached PayPal bearer token
type TokenInvalidator interface {
	Invalidate(ctx context.Context) error
}

// HealthCheck reports whether one dependency is usable
type HealthCheck func() error

// Handlers serves the operator API
type Handlers struct {
	registrar   Registrar
	simulations Simulations
	tokens      TokenInvalidator
	checks      map[string]HealthCheck
	version     string
	logger      logging.Logger
	now         func() time.Time
}

// New creates the operator handlers. checks are run by HealthCheck in name order.
func New(registrar Registrar, simulations Simulations, tokens TokenInvalidator, checks map[string]HealthCheck, version string) *Handlers {
	return &Handlers{
		registrar:   registrar,
		simulations: simulations,
		tokens:      tokens,
		checks:      checks,
		version:     version,
		logger:      logging.Component("operator_api"),
		now:         time.Now,
	}
}

// StatusResponse is returned by GET /api/webhooks
type StatusResponse struct {
	Registered   bool                          `json:"registered"`
	Descriptor   webhooks.Subscription         `json:"descriptor"`
	Subscription *webhooks.Subscription        `json:"subscription,omitempty"`
	LastFailure  *webhooks.RegistrationFailure `json:"last_failure,omitempty"`
	RetryAt      *time.Time                    `json:"retry_at,omitempty"`
	Simulation   *webhooks.SimulationRecord    `json:"simulation,omitempty"`
}

// RegisterResponse is returned by POST /api/webhooks/register
type RegisterResponse struct {
	Registered   bool                          `json:"registered"`
	Subscription *webhooks.Subscription        `json:"subscription,omitempty"`
	LastFailure  *webhooks.RegistrationFailure `json:"last_failure,omitempty"`
	RetryAt      *time.Time                    `json:"retry_at,omitempty"`
}

// UnregisterResponse is returned by DELETE /api/webhooks
type UnregisterResponse struct {
	Unregistered bool `json:"unregistered"`
}

// SimulationResponse is returned by the simulation endpoints
type SimulationResponse struct {
	State      webhooks.SimulationState   `json:"state"`
	Simulation *webhooks.SimulationRecord `json:"simulation"`
}

// ErrorResponse is the body of every failed operator call
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// GetStatus reports the webhook subscription, retry and simulation state
// @Summary Get webhook status
// @Description Returns the stored subscription, the last registration failure, the pending retry and the simulation record
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} StatusResponse
// @Failure 500 {object} ErrorResponse
// @Router /webhooks [get]
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{Descriptor: h.registrar.Descriptor()}

	sub, err := h.registrar.Subscription(ctx)
	switch {
	case err == nil:
		resp.Registered = true
		resp.Subscription = sub
	case !errors.IsType(err, errors.ErrTypeNotRegistered):
		h.sendError(w, r, err)
		return
	}

	failure, err := h.registrar.LastFailure(ctx)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	resp.LastFailure = failure

	if at, ok := h.registrar.NextRetry(); ok {
		resp.RetryAt = &at
	}

	record, err := h.simulations.Record(ctx)
	switch {
	case err == nil:
		resp.Simulation = record
	case !errors.IsType(err, errors.ErrTypeNotFound):
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// Register registers the webhook with PayPal
// @Summary Register webhook
// @Description Replaces any registration for the callback URL. A failure schedules one retry.
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} RegisterResponse
// @Router /webhooks/register [post]
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := RegisterResponse{Registered: h.registrar.Register(ctx)}

	if resp.Registered {
		sub, err := h.registrar.Subscription(ctx)
		if err == nil {
			resp.Subscription = sub
		}
	} else {
		if failure, err := h.registrar.LastFailure(ctx); err == nil {
			resp.LastFailure = failure
		}
		if at, ok := h.registrar.NextRetry(); ok {
			resp.RetryAt = &at
		}
	}

	h.logger.WithContext(ctx).Info("Registration requested by operator",
		logging.Field{Key: "registered", Value: resp.Registered},
	)
	h.sendJSON(w, http.StatusOK, resp)
}

// Unregister removes the webhook from PayPal and forgets the local subscription
// @Summary Unregister webhook
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UnregisterResponse
// @Router /webhooks [delete]
func (h *Handlers) Unregister(w http.ResponseWriter, r *http.Request) {
	ok := h.registrar.Unregister(r.Context())
	h.logger.WithContext(r.Context()).Info("Unregistration requested by operator",
		logging.Field{Key: "unregistered", Value: ok},
	)
	h.sendJSON(w, http.StatusOK, UnregisterResponse{Unregistered: ok})
}

// StartSimulation asks PayPal to deliver a simulated event
// @Summary Start simulation
// @Tags simulation
// @Produce json
// @Security BearerAuth
// @Success 202 {object} SimulationResponse
// @Failure 409 {object} ErrorResponse "Webhook not registered"
// @Failure 502 {object} ErrorResponse "PayPal unavailable"
// @Router /webhooks/simulation [post]
func (h *Handlers) StartSimulation(w http.ResponseWriter, r *http.Request) {
	record, err := h.simulations.Start(r.Context())
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusAccepted, SimulationResponse{State: record.State, Simulation: record})
}

// GetSimulation reports whether the simulated event has arrived
// @Summary Get simulation
// @Tags simulation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SimulationResponse
// @Failure 404 {object} ErrorResponse "No simulation started"
// @Router /webhooks/simulation [get]
func (h *Handlers) GetSimulation(w http.ResponseWriter, r *http.Request) {
	record, err := h.simulations.Record(r.Context())
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, SimulationResponse{State: record.State, Simulation: record})
}

// InvalidateToken drops the cached PayPal bearer token
// @Summary Invalidate bearer token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 502 {object} ErrorResponse
// @Router /auth/token [delete]
func (h *Handlers) InvalidateToken(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Invalidate(r.Context()); err != nil {
		h.sendError(w, r, errors.ConnectionError("failed to invalidate bearer token", err))
		return
	}
	h.logger.WithContext(r.Context()).Info("Bearer token invalidated by operator")
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](); err != nil {
			status = "unhealthy"
			components[name] = err.Error()
			h.logger.Warn("Health check failed", logging.Field{Key: "component", Value: name}, logging.Err(err))
			continue
		}
		components[name] = "healthy"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	h.sendJSON(w, code, map[string]interface{}{
		"status":     status,
		"timestamp":  h.now().UTC(),
		"version":    h.version,
		"components": components,
	})
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

func (h *Handlers) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	resp := ErrorResponse{Error: "internal error"}
	if appErr, ok := errors.As(err); ok {
		resp.Error = appErr.Message
		resp.Type = string(appErr.Type)
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("Operator request failed", err,
			logging.Field{Key: "path", Value: r.URL.Path},
		)
	}
	h.sendJSON(w, status, resp)
}
