// Package paypal is a small client for the PayPal REST notification API:
// webhook registration, event simulation and signature verification.
//
// Every call takes the bearer token explicitly; obtaining and caching it is
// the job of the oauth2 package.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"paypal-gateway/internal/circuitbreaker"
	"paypal-gateway/internal/common/errors"
	commonhttp "paypal-gateway/internal/common/http"
	"paypal-gateway/internal/common/logging"
)

const (
	webhooksPath        = "/v1/notifications/webhooks"
	simulateEventPath   = "/v1/notifications/simulate-event"
	verifySignaturePath = "/v1/notifications/verify-webhook-signature"
)

// APIError is a non-2xx answer from PayPal
type APIError struct {
	StatusCode int           `json:"-"`
	Name       string        `json:"name"`
	Message    string        `json:"message"`
	DebugID    string        `json:"debug_id"`
	Details    []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail is one entry of an error response's details array
type ErrorDetail struct {
	Field       string `json:"field,omitempty"`
	Issue       string `json:"issue,omitempty"`
	Description string `json:"description,omitempty"`
}

// Error renders the status plus any name, message and debug id
func (e *APIError) Error() string {
	msg := fmt.Sprintf("paypal API returned %d", e.StatusCode)
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.DebugID != "" {
		msg += " (debug_id " + e.DebugID + ")"
	}
	return msg
}

// ClientError marks 4xx answers so they do not open the circuit breaker
func (e *APIError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsUnauthorized reports whether PayPal rejected the bearer token
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return asAPIError(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client talks to one PayPal API host
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     logging.Logger
	requestID  func() string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the outbound client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithLogger replaces the component logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRequestIDs replaces the PayPal-Request-Id generator
func WithRequestIDs(next func() string) Option {
	return func(c *Client) { c.requestID = next }
}

// NewClient creates a client for baseURL, e.g. https://api-m.sandbox.paypal.com
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
		requestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Component("paypal")
	}
	c.breaker = circuitbreaker.NewGoBreaker("paypal-api", circuitbreaker.APIConfig, c.logger)
	return c
}

// do performs a JSON call; out may be nil. POSTs carry a PayPal-Request-Id.
func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return errors.InternalError("failed to encode request", err)
		}
	}

	requestID := c.requestID()
	log := c.logger.WithContext(ctx).WithFields(
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "path", Value: path},
		logging.Field{Key: "paypal_request_id", Value: requestID},
	)

	var (
		status  int
		body    []byte
		debugID string
	)
	err := c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if method == http.MethodPost {
			req.Header.Set("PayPal-Request-Id", requestID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.ConnectionError("paypal request failed", err)
		}
		status = resp.StatusCode
		debugID = commonhttp.DebugID(resp)
		if body, err = commonhttp.ReadBody(resp, commonhttp.MaxResponseBytes); err != nil {
			return errors.ConnectionError("paypal response unreadable", err)
		}
		if status < 200 || status > 299 {
			return newAPIError(status, debugID, body)
		}
		return nil
	})
	if err != nil {
		log.Warn("PayPal API call failed",
			logging.Field{Key: "status", Value: status},
			logging.Field{Key: "debug_id", Value: debugID},
			logging.Err(err),
		)
		return err
	}

	log.Debug("PayPal API call succeeded", logging.Field{Key: "status", Value: status}, logging.Field{Key: "debug_id", Value: debugID})

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.DecodeError("paypal response is not valid JSON", err).WithContext("debug_id", debugID)
	}
	return nil
}

func newAPIError(status int, debugID string, body []byte) *APIError {
	apiErr := &APIError{}
	_ = json.Unmarshal(body, apiErr)
	apiErr.StatusCode = status
	if apiErr.DebugID == "" {
		apiErr.DebugID = debugID
	}
	return apiErr
}
