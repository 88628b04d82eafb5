package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"paypal-gateway/internal/circuitbreaker"
	"paypal-gateway/internal/common/cache"
	"paypal-gateway/internal/common/errors"
	commonhttp "paypal-gateway/internal/common/http"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/crypto"
)

const (
	// CacheKey is where the bearer token blob is stored
	CacheKey  = "paypal_bearer_token"
	tokenPath = "/v1/oauth2/token"

	// refreshTimeout bounds a shared refresh, which outlives the caller that started it
	refreshTimeout = 30 * time.Second
)

// Config identifies the PayPal REST app
type Config struct {
	// BaseURL is the REST API root, e.g. https://api-m.sandbox.paypal.com
	BaseURL string
	// ClientID and ClientSecret are sent as HTTP basic auth to the token endpoint
	ClientID     string
	ClientSecret string
}

// TokenResponse is the body of a successful client-credentials grant
type TokenResponse struct {
	Scope       string `json:"scope"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	AppID       string `json:"app_id"`
	// ExpiresIn is the token lifetime in seconds
	ExpiresIn int    `json:"expires_in"`
	Nonce     string `json:"nonce"`
	// Created is the issue time in unix seconds, when the provider sends one
	Created int64 `json:"created,omitempty"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Authenticator hands out a valid bearer token, refreshing it when needed.
// It is safe for concurrent use.
type Authenticator struct {
	config     Config
	cache      cache.Cache
	sealer     *crypto.Sealer
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     logging.Logger
	now        func() time.Time
	refreshes  singleflight.Group
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithHTTPClient overrides the outbound client
func WithHTTPClient(client *http.Client) Option {
	return func(a *Authenticator) { a.httpClient = client }
}

// WithSealer encrypts the cached token blob
func WithSealer(sealer *crypto.Sealer) Option {
	return func(a *Authenticator) { a.sealer = sealer }
}

// WithLogger replaces the component logger
func WithLogger(logger logging.Logger) Option {
	return func(a *Authenticator) { a.logger = logger }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator validates cfg and returns an Authenticator backed by c
func NewAuthenticator(cfg Config, c cache.Cache, opts ...Option) (*Authenticator, error) {
	if cfg.BaseURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.ConfigError("PayPal base URL, client id and client secret are required")
	}
	if c == nil {
		return nil, errors.ConfigError("token cache is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	a := &Authenticator{
		config:     cfg,
		cache:      c,
		httpClient: commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.Component("oauth2")
	}
	a.breaker = circuitbreaker.NewGoBreaker("paypal-oauth2", circuitbreaker.OAuthConfig, a.logger)

	return a, nil
}

// GetToken returns a token valid at the time of the call. A cached token is
// returned without any network traffic; otherwise a new one is requested and
// cached. Failures are AuthError values and leave the cache untouched.
func (a *Authenticator) GetToken(ctx context.Context) (AccessToken, error) {
	if token, ok := a.cached(ctx); ok {
		return token, nil
	}

	// The refresh is shared by every waiting caller, so it must not die with
	// the request that happened to start it.
	results := a.refreshes.DoChan(CacheKey, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		// Another caller may have refreshed while this one waited.
		if token, ok := a.cached(refreshCtx); ok {
			return token, nil
		}
		return a.refresh(refreshCtx)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	case <-ctx.Done():
		return AccessToken{}, errors.AuthError("token request cancelled", ctx.Err())
	}
}

// AuthorizationHeader returns "Bearer <token>"
func (a *Authenticator) AuthorizationHeader(ctx context.Context) (string, error) {
	token, err := a.GetToken(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token.Token, nil
}

// Invalidate drops the cached token so the next GetToken requests a new one.
// Used after PayPal rejects a token that looked valid.
func (a *Authenticator) Invalidate(ctx context.Context) error {
	return a.cache.Delete(ctx, CacheKey)
}

func (a *Authenticator) cached(ctx context.Context) (AccessToken, bool) {
	blob, found, err := a.cache.Get(ctx, CacheKey)
	if err != nil {
		a.logger.Warn("Token cache read failed, requesting a new token", logging.Err(err))
		return AccessToken{}, false
	}
	if !found {
		return AccessToken{}, false
	}

	if a.sealer != nil {
		if blob, err = a.sealer.Open(blob, CacheKey); err != nil {
			a.logger.Warn("Cached token could not be unsealed", logging.Err(err))
			return AccessToken{}, false
		}
	}

	token, err := decodeToken(blob)
	if err != nil {
		a.logger.Warn("Cached token is unreadable", logging.Err(err))
		return AccessToken{}, false
	}
	if !token.IsValid(a.now()) {
		return AccessToken{}, false
	}
	return token, true
}

func (a *Authenticator) refresh(ctx context.Context) (AccessToken, error) {
	tokenURL := a.config.BaseURL + tokenPath
	log := a.logger.WithContext(ctx).WithFields(logging.Field{Key: "url", Value: tokenURL})

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	var resp *http.Response
	err := a.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth(a.config.ClientID, a.config.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err = a.httpClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to obtain PayPal access token", err)
		return AccessToken{}, errors.AuthError("token request failed", err)
	}

	status := resp.StatusCode
	debugID := commonhttp.DebugID(resp)
	log = log.WithFields(logging.Field{Key: "status", Value: status}, logging.Field{Key: "debug_id", Value: debugID})

	body, err := commonhttp.ReadBody(resp, commonhttp.MaxResponseBytes)
	if err != nil {
		log.Error("Failed to obtain PayPal access token", err)
		return AccessToken{}, errors.AuthError("token response unreadable", err)
	}

	if status != http.StatusOK {
		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)
		authErr := errors.AuthError(fmt.Sprintf("token request rejected with status %d", status), nil).
			WithCode(errResp.Error).
			WithContext("debug_id", debugID)
		log.Error("Failed to obtain PayPal access token", authErr,
			logging.Field{Key: "error_code", Value: errResp.Error},
			logging.Field{Key: "error_description", Value: errResp.Description},
		)
		return AccessToken{}, authErr
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		log.Error("Failed to obtain PayPal access token", err)
		return AccessToken{}, errors.AuthError("token response is not valid JSON", err)
	}
	if tokenResp.AccessToken == "" || tokenResp.ExpiresIn <= 0 {
		authErr := errors.AuthError("token response is missing access_token or expires_in", nil)
		log.Error("Failed to obtain PayPal access token", authErr)
		return AccessToken{}, authErr
	}

	token := AccessToken{
		Token:     tokenResp.AccessToken,
		CreatedAt: issuedAt(tokenResp.Created, a.now()),
		ExpiresIn: tokenResp.ExpiresIn,
	}
	a.store(ctx, token)

	log.Debug("Obtained PayPal access token", logging.Field{Key: "expires_in", Value: token.ExpiresIn})
	return token, nil
}

// issuedAt prefers the provider's issue time. A value ahead of the local
// clock is ignored so skew can never stretch a token's life.
func issuedAt(created int64, now time.Time) time.Time {
	if created <= 0 {
		return now
	}
	if t := time.Unix(created, 0); t.Before(now) {
		return t
	}
	return now
}

// store writes the token; a failed write only costs an extra refresh later.
func (a *Authenticator) store(ctx context.Context, token AccessToken) {
	blob, err := encodeToken(token)
	if err == nil && a.sealer != nil {
		blob, err = a.sealer.Seal(blob, CacheKey)
	}
	if err == nil {
		err = a.cache.Set(ctx, CacheKey, blob, token.TTL())
	}
	if err != nil {
		a.logger.Warn("Failed to cache PayPal access token", logging.Err(err))
	}
}
