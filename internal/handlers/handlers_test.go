package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/webhooks"
)

// MockRegistrar is a mock implementation of Registrar
type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) Descriptor() webhooks.Subscription {
	args := m.Called()
	return args.Get(0).(webhooks.Subscription)
}

func (m *MockRegistrar) Register(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockRegistrar) Unregister(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockRegistrar) Subscription(ctx context.Context) (*webhooks.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhooks.Subscription), args.Error(1)
}

func (m *MockRegistrar) LastFailure(ctx context.Context) (*webhooks.RegistrationFailure, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhooks.RegistrationFailure), args.Error(1)
}

func (m *MockRegistrar) NextRetry() (time.Time, bool) {
	args := m.Called()
	return args.Get(0).(time.Time), args.Bool(1)
}

// MockSimulations is a mock implementation of Simulations
type MockSimulations struct {
	mock.Mock
}

func (m *MockSimulations) Start(ctx context.Context) (*webhooks.SimulationRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhooks.SimulationRecord), args.Error(1)
}

func (m *MockSimulations) Record(ctx context.Context) (*webhooks.SimulationRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhooks.SimulationRecord), args.Error(1)
}

// MockTokens is a mock implementation of TokenInvalidator
type MockTokens struct {
	mock.Mock
}

func (m *MockTokens) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var descriptor = webhooks.Subscription{
	SchemaVersion: 1,
	CallbackURL:   "https://shop.example.com/paypal/v1/incoming",
	EventTypes:    []string{"CHECKOUT.ORDER.APPROVED", "PAYMENT.CAPTURE.COMPLETED"},
}

func newTestHandlers() (*Handlers, *MockRegistrar, *MockSimulations, *MockTokens) {
	reg := new(MockRegistrar)
	sims := new(MockSimulations)
	tokens := new(MockTokens)
	h := New(reg, sims, tokens, nil, "test")
	return h, reg, sims, tokens
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

func TestGetStatus(t *testing.T) {
	registered := descriptor
	registered.ID = "WH-1"
	registered.RegisteredAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	retryAt := time.Date(2025, 1, 2, 3, 5, 5, 0, time.UTC)

	tests := []struct {
		name           string
		setup          func(reg *MockRegistrar, sims *MockSimulations)
		expectedStatus int
		check          func(t *testing.T, resp StatusResponse)
	}{
		{
			name: "registered with simulation",
			setup: func(reg *MockRegistrar, sims *MockSimulations) {
				reg.On("Subscription", mock.Anything).Return(&registered, nil)
				reg.On("LastFailure", mock.Anything).Return(nil, nil)
				reg.On("NextRetry").Return(time.Time{}, false)
				sims.On("Record", mock.Anything).Return(&webhooks.SimulationRecord{EventID: "WH-SIM", State: webhooks.SimulationReceived}, nil)
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, resp StatusResponse) {
				assert.True(t, resp.Registered)
				require.NotNil(t, resp.Subscription)
				assert.Equal(t, "WH-1", resp.Subscription.ID)
				require.NotNil(t, resp.Simulation)
				assert.Equal(t, webhooks.SimulationReceived, resp.Simulation.State)
				assert.Nil(t, resp.RetryAt)
			},
		},
		{
			name: "not registered with pending retry",
			setup: func(reg *MockRegistrar, sims *MockSimulations) {
				reg.On("Subscription", mock.Anything).Return(nil, errors.NotRegisteredError())
				reg.On("LastFailure", mock.Anything).Return(&webhooks.RegistrationFailure{Error: "provider down"}, nil)
				reg.On("NextRetry").Return(retryAt, true)
				sims.On("Record", mock.Anything).Return(nil, errors.NotFoundError("simulation"))
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, resp StatusResponse) {
				assert.False(t, resp.Registered)
				assert.Nil(t, resp.Subscription)
				require.NotNil(t, resp.LastFailure)
				assert.Equal(t, "provider down", resp.LastFailure.Error)
				require.NotNil(t, resp.RetryAt)
				assert.True(t, retryAt.Equal(*resp.RetryAt))
				assert.Nil(t, resp.Simulation)
			},
		},
		{
			name: "store failure",
			setup: func(reg *MockRegistrar, sims *MockSimulations) {
				reg.On("Subscription", mock.Anything).Return(nil, errors.InternalError("failed to read subscription", stderrors.New("disk")))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, reg, sims, _ := newTestHandlers()
			reg.On("Descriptor").Return(descriptor)
			tt.setup(reg, sims)

			rr := httptest.NewRecorder()
			h.GetStatus(rr, httptest.NewRequest(http.MethodGet, "/api/webhooks", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.check != nil {
				var resp StatusResponse
				decode(t, rr, &resp)
				assert.Equal(t, descriptor.EventTypes, resp.Descriptor.EventTypes)
				tt.check(t, resp)
			} else {
				var resp ErrorResponse
				decode(t, rr, &resp)
				assert.Equal(t, "failed to read subscription", resp.Error)
				assert.NotContains(t, rr.Body.String(), "disk")
			}
			reg.AssertExpectations(t)
		})
	}
}

func TestRegister(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h, reg, _, _ := newTestHandlers()
		sub := descriptor
		sub.ID = "WH-2"
		reg.On("Register", mock.Anything).Return(true)
		reg.On("Subscription", mock.Anything).Return(&sub, nil)

		rr := httptest.NewRecorder()
		h.Register(rr, httptest.NewRequest(http.MethodPost, "/api/webhooks/register", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp RegisterResponse
		decode(t, rr, &resp)
		assert.True(t, resp.Registered)
		require.NotNil(t, resp.Subscription)
		assert.Equal(t, "WH-2", resp.Subscription.ID)
		reg.AssertExpectations(t)
	})

	t.Run("failure reports retry", func(t *testing.T) {
		h, reg, _, _ := newTestHandlers()
		retryAt := time.Now().Add(time.Minute).UTC()
		reg.On("Register", mock.Anything).Return(false)
		reg.On("LastFailure", mock.Anything).Return(&webhooks.RegistrationFailure{Error: "token refused"}, nil)
		reg.On("NextRetry").Return(retryAt, true)

		rr := httptest.NewRecorder()
		h.Register(rr, httptest.NewRequest(http.MethodPost, "/api/webhooks/register", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp RegisterResponse
		decode(t, rr, &resp)
		assert.False(t, resp.Registered)
		require.NotNil(t, resp.LastFailure)
		assert.Equal(t, "token refused", resp.LastFailure.Error)
		require.NotNil(t, resp.RetryAt)
		reg.AssertExpectations(t)
	})
}

func TestUnregister(t *testing.T) {
	h, reg, _, _ := newTestHandlers()
	reg.On("Unregister", mock.Anything).Return(true)

	rr := httptest.NewRecorder()
	h.Unregister(rr, httptest.NewRequest(http.MethodDelete, "/api/webhooks", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp UnregisterResponse
	decode(t, rr, &resp)
	assert.True(t, resp.Unregistered)
}

func TestStartSimulation(t *testing.T) {
	tests := []struct {
		name           string
		record         *webhooks.SimulationRecord
		err            error
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "started",
			record:         &webhooks.SimulationRecord{EventID: "WH-SIM", EventType: "CHECKOUT.ORDER.APPROVED", State: webhooks.SimulationWaiting},
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "not registered",
			err:            errors.NotRegisteredError(),
			expectedStatus: http.StatusConflict,
			expectedType:   string(errors.ErrTypeNotRegistered),
		},
		{
			name:           "provider unavailable",
			err:            errors.ConnectionError("paypal unreachable", stderrors.New("dial tcp")),
			expectedStatus: http.StatusBadGateway,
			expectedType:   string(errors.ErrTypeConnection),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, sims, _ := newTestHandlers()
			if tt.err != nil {
				sims.On("Start", mock.Anything).Return(nil, tt.err)
			} else {
				sims.On("Start", mock.Anything).Return(tt.record, nil)
			}

			rr := httptest.NewRecorder()
			h.StartSimulation(rr, httptest.NewRequest(http.MethodPost, "/api/webhooks/simulation", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.err != nil {
				var resp ErrorResponse
				decode(t, rr, &resp)
				assert.Equal(t, tt.expectedType, resp.Type)
				return
			}
			var resp SimulationResponse
			decode(t, rr, &resp)
			assert.Equal(t, webhooks.SimulationWaiting, resp.State)
			assert.Equal(t, "WH-SIM", resp.Simulation.EventID)
		})
	}
}

func TestGetSimulation(t *testing.T) {
	t.Run("received", func(t *testing.T) {
		h, _, sims, _ := newTestHandlers()
		sims.On("Record", mock.Anything).Return(&webhooks.SimulationRecord{EventID: "WH-SIM", State: webhooks.SimulationReceived}, nil)

		rr := httptest.NewRecorder()
		h.GetSimulation(rr, httptest.NewRequest(http.MethodGet, "/api/webhooks/simulation", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp SimulationResponse
		decode(t, rr, &resp)
		assert.Equal(t, webhooks.SimulationReceived, resp.State)
	})

	t.Run("none started", func(t *testing.T) {
		h, _, sims, _ := newTestHandlers()
		sims.On("Record", mock.Anything).Return(nil, errors.NotFoundError("simulation"))

		rr := httptest.NewRecorder()
		h.GetSimulation(rr, httptest.NewRequest(http.MethodGet, "/api/webhooks/simulation", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestInvalidateToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h, _, _, tokens := newTestHandlers()
		tokens.On("Invalidate", mock.Anything).Return(nil).Once()

		rr := httptest.NewRecorder()
		h.InvalidateToken(rr, httptest.NewRequest(http.MethodDelete, "/api/auth/token", nil))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		tokens.AssertExpectations(t)
	})

	t.Run("cache unavailable", func(t *testing.T) {
		h, _, _, tokens := newTestHandlers()
		tokens.On("Invalidate", mock.Anything).Return(stderrors.New("redis down")).Once()

		rr := httptest.NewRecorder()
		h.InvalidateToken(rr, httptest.NewRequest(http.MethodDelete, "/api/auth/token", nil))

		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]HealthCheck
		expectedStatus int
		expectedState  string
	}{
		{
			name:           "no dependencies",
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
		},
		{
			name: "all healthy",
			checks: map[string]HealthCheck{
				"storage": func() error { return nil },
				"redis":   func() error { return nil },
			},
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
		},
		{
			name: "storage down",
			checks: map[string]HealthCheck{
				"storage": func() error { return stderrors.New("database is locked") },
				"redis":   func() error { return nil },
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(new(MockRegistrar), new(MockSimulations), new(MockTokens), tt.checks, "1.2.3")

			rr := httptest.NewRecorder()
			h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var resp struct {
				Status     string            `json:"status"`
				Version    string            `json:"version"`
				Components map[string]string `json:"components"`
			}
			decode(t, rr, &resp)
			assert.Equal(t, tt.expectedState, resp.Status)
			assert.Equal(t, "1.2.3", resp.Version)
			assert.Len(t, resp.Components, len(tt.checks))
		})
	}
}
