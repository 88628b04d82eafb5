package oauth2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"paypal-gateway/internal/common/cache"
	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/crypto"
)

type recordingCache struct {
	*cache.LocalCache
	mu      sync.Mutex
	sets    int
	lastTTL time.Duration
}

func newRecordingCache() *recordingCache {
	return &recordingCache{LocalCache: cache.NewLocalCache(time.Minute)}
}

func (r *recordingCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	r.mu.Lock()
	r.sets++
	r.lastTTL = ttl
	r.mu.Unlock()
	return r.LocalCache.Set(ctx, key, value, ttl)
}

type tokenServer struct {
	*httptest.Server
	requests atomic.Int32
}

func newTokenServer(t *testing.T, handler http.HandlerFunc) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func okTokenHandler(token string, expiresIn int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"scope":        "https://uri.paypal.com/services/applications/webhooks",
			"access_token": token,
			"token_type":   "Bearer",
			"app_id":       "APP-80W284485P519543T",
			"expires_in":   expiresIn,
			"nonce":        "2024-01-01T00:00:00Z",
		})
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestAuthenticator(t *testing.T, baseURL string, c cache.Cache, clock *fakeClock, opts ...Option) *Authenticator {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNopLogger()), WithClock(clock.Now)}, opts...)
	auth, err := NewAuthenticator(Config{
		BaseURL:      baseURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, c, opts...)
	require.NoError(t, err)
	return auth
}

func TestNewAuthenticator_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		c    cache.Cache
	}{
		{"missing base url", Config{ClientID: "id", ClientSecret: "secret"}, cache.NewLocalCache(time.Minute)},
		{"missing secret", Config{BaseURL: "http://x", ClientID: "id"}, cache.NewLocalCache(time.Minute)},
		{"missing cache", Config{BaseURL: "http://x", ClientID: "id", ClientSecret: "secret"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthenticator(tt.cfg, tt.c)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		})
	}
}

func TestGetToken_RequestsAndCaches(t *testing.T) {
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/oauth2/token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		okTokenHandler("A21AA-token", 32400)(w, r)
	})
	c := newRecordingCache()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	auth := newTestAuthenticator(t, server.URL+"/", c, clock)

	token, err := auth.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A21AA-token", token.Token)
	assert.Equal(t, 32400, token.ExpiresIn)
	assert.Equal(t, clock.now, token.CreatedAt)
	assert.Equal(t, 1, c.sets)
	assert.Equal(t, 32400*time.Second, c.lastTTL)

	blob, found, err := c.Get(context.Background(), CacheKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"schema_version":1,"token":"A21AA-token","created":1700000000,"expires_in":32400}`, blob)

	// Second call is served from the cache.
	again, err := auth.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token.Token, again.Token)
	assert.Equal(t, int32(1), server.requests.Load())
}

func TestGetToken_ValidCachedTokenNoNetwork(t *testing.T) {
	server := newTokenServer(t, okTokenHandler("fresh", 3600))
	c := newRecordingCache()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	auth := newTestAuthenticator(t, server.URL, c, clock)

	blob, err := encodeToken(AccessToken{Token: "cached", CreatedAt: clock.now.Add(-10 * time.Second), ExpiresIn: 3600})
	require.NoError(t, err)
	require.NoError(t, c.LocalCache.Set(context.Background(), CacheKey, blob, 0))

	header, err := auth.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer cached", header)
	assert.Equal(t, int32(0), server.requests.Load())
}

func TestGetToken_ExpiryAndSafetyMargin(t *testing.T) {
	server := newTokenServer(t, okTokenHandler("short-lived", 100))
	c := newRecordingCache()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	auth := newTestAuthenticator(t, server.URL, c, clock)
	ctx := context.Background()

	_, err := auth.GetToken(ctx)
	require.NoError(t, err)

	clock.now = clock.now.Add(90 * time.Second)
	_, err = auth.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), server.requests.Load(), "token is still fresh 90s into a 100s lifetime")

	clock.now = clock.now.Add(6 * time.Second)
	_, err = auth.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), server.requests.Load(), "token within the safety margin is refreshed")
}

func TestGetToken_FailuresLeaveCacheUntouched(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode string
	}{
		{
			name: "invalid client",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Paypal-Debug-Id", "dbg-1")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid_client","error_description":"Client Authentication failed"}`))
			},
			wantCode: "invalid_client",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"access_token":`))
			},
		},
		{
			name: "missing expires_in",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"access_token":"abc"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTokenServer(t, tt.handler)
			c := newRecordingCache()
			clock := &fakeClock{now: time.Unix(1700000000, 0)}
			auth := newTestAuthenticator(t, server.URL, c, clock)

			stale, err := encodeToken(AccessToken{Token: "stale", CreatedAt: clock.now.Add(-2 * time.Hour), ExpiresIn: 3600})
			require.NoError(t, err)
			require.NoError(t, c.LocalCache.Set(context.Background(), CacheKey, stale, 0))

			_, err = auth.GetToken(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
			if tt.wantCode != "" {
				appErr, ok := errors.As(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, appErr.Code)
				assert.NotContains(t, err.Error(), "client-secret")
			}

			assert.Equal(t, 0, c.sets)
			blob, found, _ := c.Get(context.Background(), CacheKey)
			assert.True(t, found)
			assert.Equal(t, stale, blob)
		})
	}
}

func TestGetToken_UnreachableServer(t *testing.T) {
	server := newTokenServer(t, okTokenHandler("x", 60))
	url := server.URL
	server.Close()

	c := newRecordingCache()
	auth := newTestAuthenticator(t, url, c, &fakeClock{now: time.Now()})

	_, err := auth.GetToken(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
	assert.Equal(t, 0, c.sets)
}

func TestGetToken_UnreadableCacheEntries(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not json", "garbage"},
		{"newer schema", `{"schema_version":2,"token":"future","created":1700000000,"expires_in":3600}`},
		{"empty token", `{"schema_version":1,"token":"","created":1700000000,"expires_in":3600}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTokenServer(t, okTokenHandler("replacement", 3600))
			c := newRecordingCache()
			auth := newTestAuthenticator(t, server.URL, c, &fakeClock{now: time.Unix(1700000000, 0)})
			require.NoError(t, c.LocalCache.Set(context.Background(), CacheKey, tt.blob, 0))

			token, err := auth.GetToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "replacement", token.Token)
			assert.Equal(t, int32(1), server.requests.Load())
		})
	}
}

func TestGetToken_SealedCache(t *testing.T) {
	server := newTokenServer(t, okTokenHandler("sealed-token", 3600))
	c := newRecordingCache()
	sealer, err := crypto.NewSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	auth := newTestAuthenticator(t, server.URL, c, &fakeClock{now: time.Unix(1700000000, 0)}, WithSealer(sealer))

	_, err = auth.GetToken(context.Background())
	require.NoError(t, err)

	blob, found, err := c.Get(context.Background(), CacheKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, strings.Contains(blob, "sealed-token"))

	token, err := auth.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sealed-token", token.Token)
	assert.Equal(t, int32(1), server.requests.Load())
}

func TestGetToken_ConcurrentCallersShareRefresh(t *testing.T) {
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		okTokenHandler("shared", 3600)(w, r)
	})
	auth := newTestAuthenticator(t, server.URL, newRecordingCache(), &fakeClock{now: time.Unix(1700000000, 0)})

	var wg sync.WaitGroup
	tokens := make([]string, 10)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := auth.GetToken(context.Background())
			assert.NoError(t, err)
			tokens[i] = token.Token
		}(i)
	}
	wg.Wait()

	for _, token := range tokens {
		assert.Equal(t, "shared", token)
	}
	assert.Equal(t, int32(1), server.requests.Load())
}

func TestGetToken_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
		okTokenHandler("survivor", 3600)(w, r)
	})
	auth := newTestAuthenticator(t, server.URL, newRecordingCache(), &fakeClock{now: time.Unix(1700000000, 0)})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := auth.GetToken(firstCtx)
		firstErr <- err
	}()
	<-arrived

	type result struct {
		token AccessToken
		err   error
	}
	second := make(chan result, 1)
	go func() {
		token, err := auth.GetToken(context.Background())
		second <- result{token, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	err := <-firstErr
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))

	close(release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, "survivor", res.token.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller never got a token")
	}
	assert.Equal(t, int32(1), server.requests.Load())
}

func TestGetToken_ProviderCreatedTime(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name    string
		created int64
		want    time.Time
	}{
		{"absent", 0, now},
		{"earlier than local clock", now.Unix() - 120, now.Add(-120 * time.Second)},
		{"ahead of local clock", now.Unix() + 600, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
				body := map[string]interface{}{"access_token": "A21AA-created", "expires_in": 3600}
				if tt.created != 0 {
					body["created"] = tt.created
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(body)
			})
			auth := newTestAuthenticator(t, server.URL, newRecordingCache(), &fakeClock{now: now})

			token, err := auth.GetToken(context.Background())
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(token.CreatedAt), "created at %v, want %v", token.CreatedAt, tt.want)
		})
	}
}

func TestInvalidate(t *testing.T) {
	server := newTokenServer(t, okTokenHandler("again", 3600))
	auth := newTestAuthenticator(t, server.URL, newRecordingCache(), &fakeClock{now: time.Unix(1700000000, 0)})
	ctx := context.Background()

	_, err := auth.GetToken(ctx)
	require.NoError(t, err)
	require.NoError(t, auth.Invalidate(ctx))
	_, err = auth.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), server.requests.Load())
}

func TestAccessToken_IsValid(t *testing.T) {
	created := time.Unix(1700000000, 0)
	tests := []struct {
		name  string
		token AccessToken
		at    time.Time
		want  bool
	}{
		{"fresh", AccessToken{Token: "t", CreatedAt: created, ExpiresIn: 100}, created.Add(10 * time.Second), true},
		{"inside margin", AccessToken{Token: "t", CreatedAt: created, ExpiresIn: 100}, created.Add(96 * time.Second), false},
		{"expired", AccessToken{Token: "t", CreatedAt: created, ExpiresIn: 100}, created.Add(time.Hour), false},
		{"empty token", AccessToken{CreatedAt: created, ExpiresIn: 100}, created, false},
		{"zero lifetime", AccessToken{Token: "t", CreatedAt: created}, created, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.IsValid(tt.at))
		})
	}
}
