package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paypal-gateway/internal/auth"
	"paypal-gateway/internal/common/logging"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type recordedCall struct {
	method string
	path   string
	token  string
}

func fakeGateway(t *testing.T, status int, body string) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		calls = append(calls, recordedCall{method: r.Method, path: r.URL.Path, token: token})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands_Routes(t *testing.T) {
	tests := []struct {
		args   []string
		method string
		path   string
	}{
		{args: []string{"status"}, method: http.MethodGet, path: "/api/webhooks"},
		{args: []string{"register"}, method: http.MethodPost, path: "/api/webhooks/register"},
		{args: []string{"unregister"}, method: http.MethodDelete, path: "/api/webhooks"},
		{args: []string{"simulate", "start"}, method: http.MethodPost, path: "/api/webhooks/simulation"},
		{args: []string{"simulate", "status"}, method: http.MethodGet, path: "/api/webhooks/simulation"},
		{args: []string{"token", "invalidate"}, method: http.MethodDelete, path: "/api/auth/token"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			srv, calls := fakeGateway(t, http.StatusOK, `{"registered":true}`)

			args := append(append([]string{}, tt.args...), "--server", srv.URL+"/", "--secret", testSecret)
			out, err := run(t, args...)
			require.NoError(t, err)
			assert.Contains(t, out, `"registered": true`)

			require.Len(t, *calls, 1)
			call := (*calls)[0]
			assert.Equal(t, tt.method, call.method)
			assert.Equal(t, tt.path, call.path)

			verifier, err := auth.New(testSecret, nil, logging.NewNopLogger())
			require.NoError(t, err)
			claims, err := verifier.ValidateToken(context.Background(), call.token)
			require.NoError(t, err)
			assert.Equal(t, auth.Issuer, claims.Issuer)
		})
	}
}

func TestCommands_ErrorStatus(t *testing.T) {
	srv, _ := fakeGateway(t, http.StatusConflict, `{"error":"webhook is not registered","type":"not_registered"}`)

	out, err := run(t, "simulate", "start", "--server", srv.URL, "--secret", testSecret)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, out, "webhook is not registered")
}

func TestCommands_NoSecretSendsNoToken(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "")
	srv, calls := fakeGateway(t, http.StatusOK, `{}`)

	_, err := run(t, "status", "--server", srv.URL)
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Empty(t, (*calls)[0].token)
}

func TestCommands_ShortSecretFails(t *testing.T) {
	srv, calls := fakeGateway(t, http.StatusOK, `{}`)

	_, err := run(t, "status", "--server", srv.URL, "--secret", "short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to mint operator token")
	assert.Empty(t, *calls)
}
