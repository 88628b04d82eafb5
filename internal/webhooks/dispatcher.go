package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
)

// DefaultMaxBodyBytes bounds the size of a callback body
const DefaultMaxBodyBytes = 1 << 20

// Dispatch outcomes, as logged and returned to the provider
const (
	OutcomeHandled   = "handled"
	OutcomeUnhandled = "unhandled"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

// Receiver is told about every successfully dispatched event
type Receiver interface {
	Receive(ctx context.Context, event *InboundEvent) bool
}

// Result describes how one delivery was resolved
type Result struct {
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Handler   string `json:"handler,omitempty"`
	Outcome   string `json:"outcome"`
	Simulated bool   `json:"simulated,omitempty"`
}

// Dispatcher serves the PayPal callback endpoint. Each delivery is verified,
// decoded and passed to at most one handler, the one the HandlerSet resolved
// for its event type.
type Dispatcher struct {
	handlers     *HandlerSet
	verifier     Verifier
	receiver     Receiver
	logger       logging.Logger
	maxBodyBytes int64
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithVerifier enables authenticity checks
func WithVerifier(v Verifier) DispatcherOption {
	return func(d *Dispatcher) { d.verifier = v }
}

// WithReceiver sets the component notified after successful dispatch
func WithReceiver(r Receiver) DispatcherOption {
	return func(d *Dispatcher) { d.receiver = r }
}

// WithDispatcherLogger replaces the component logger
func WithDispatcherLogger(logger logging.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMaxBodyBytes caps the accepted request body; larger bodies are malformed
func WithMaxBodyBytes(n int64) DispatcherOption {
	return func(d *Dispatcher) { d.maxBodyBytes = n }
}

// NewDispatcher creates a dispatcher over handlers
func NewDispatcher(handlers *HandlerSet, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers:     handlers,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Component("dispatcher")
	}
	return d
}

// ServeHTTP answers the provider with the status mapped from the dispatch
// error and a small JSON outcome document
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, err := d.Dispatch(r.Context(), r)

	log := d.logger.WithContext(r.Context()).WithFields(
		logging.Field{Key: "event_id", Value: result.EventID},
		logging.Field{Key: "event_type", Value: result.EventType},
		logging.Field{Key: "handler", Value: result.Handler},
		logging.Field{Key: "outcome", Value: result.Outcome},
		logging.Field{Key: "duration", Value: time.Since(start).String()},
	)

	status := errors.HTTPStatus(err)
	switch {
	case err == nil && result.Outcome == OutcomeUnhandled:
		log.Info("Webhook event unhandled")
	case err == nil:
		log.Info("Webhook event dispatched")
	case result.Outcome == OutcomeFailed:
		log.Error("Webhook handler failed", err)
	default:
		log.Warn("Webhook delivery rejected", logging.Err(err))
	}

	response := map[string]interface{}{
		"success": err == nil,
		"outcome": result.Outcome,
	}
	if result.EventID != "" {
		response["event_id"] = result.EventID
	}
	if err != nil {
		response["error"] = publicMessage(err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// Dispatch runs one delivery through verification, decoding and handling
func (d *Dispatcher) Dispatch(ctx context.Context, r *http.Request) (Result, error) {
	body, err := d.readBody(r)
	if err != nil {
		return Result{Outcome: OutcomeMalformed}, err
	}

	if d.verifier != nil {
		if err := d.verifier.Verify(ctx, r, body); err != nil {
			return Result{Outcome: OutcomeRejected}, err
		}
	}

	event, err := DecodeEvent(body)
	if err != nil {
		return Result{Outcome: OutcomeMalformed}, err
	}
	result := Result{EventID: event.ID, EventType: event.EventType}

	handler, ok := d.handlers.Lookup(event.EventType)
	if ok {
		result.Handler = HandlerName(handler)
		if err := invoke(ctx, handler, event); err != nil {
			result.Outcome = OutcomeFailed
			return result, err
		}
		result.Outcome = OutcomeHandled
	} else {
		result.Outcome = OutcomeUnhandled
	}

	if d.receiver != nil {
		result.Simulated = d.receiver.Receive(ctx, event)
	}
	return result, nil
}

func (d *Dispatcher) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errors.DecodeError("empty request body", nil)
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, d.maxBodyBytes+1))
	if err != nil {
		return nil, errors.DecodeError("failed to read request body", err)
	}
	if int64(len(body)) > d.maxBodyBytes {
		return nil, errors.DecodeError("request body too large", nil).WithContext("limit", d.maxBodyBytes)
	}
	return body, nil
}

// DecodeEvent parses a callback body. id and event_type are required.
func DecodeEvent(body []byte) (*InboundEvent, error) {
	var event InboundEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errors.DecodeError("body is not a JSON event", err)
	}
	if event.ID == "" || event.EventType == "" {
		return nil, errors.DecodeError("event id and event_type are required", nil)
	}
	return &event, nil
}

func invoke(ctx context.Context, handler EventHandler, event *InboundEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.HandlerError(event.EventType, fmt.Errorf("panic: %v", rec)).
				WithContext("handler", HandlerName(handler))
		}
	}()
	if err := handler.Handle(ctx, event); err != nil {
		return errors.HandlerError(event.EventType, err).WithContext("handler", HandlerName(handler))
	}
	return nil
}

// publicMessage keeps causes out of responses sent to the provider
func publicMessage(err error) string {
	if appErr, ok := errors.As(err); ok {
		return appErr.Message
	}
	return "internal error"
}
