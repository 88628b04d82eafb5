package webhooks

import (
	"context"
	"strings"
	"sync"
	"time"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/storage"
)

// SimulationConfig selects the synthetic event PayPal sends
type SimulationConfig struct {
	EventType       string
	ResourceVersion string
}

// SimulationTracker fires a simulated event through the registered webhook
// and records when it comes back. States move idle -> waiting -> received;
// a new Start overwrites whatever was recorded before.
type SimulationTracker struct {
	config        SimulationConfig
	subscriptions SubscriptionSource
	tokens        TokenSource
	api           SimulationAPI
	store         storage.OptionStore
	logger        logging.Logger
	now           func() time.Time

	// serialises read-modify-write of the record within this process
	mu sync.Mutex
}

// SimulationOption configures a SimulationTracker
type SimulationOption func(*SimulationTracker)

// WithSimulationLogger replaces the component logger
func WithSimulationLogger(logger logging.Logger) SimulationOption {
	return func(s *SimulationTracker) { s.logger = logger }
}

// WithSimulationClock replaces time.Now, for tests
func WithSimulationClock(now func() time.Time) SimulationOption {
	return func(s *SimulationTracker) { s.now = now }
}

// NewSimulationTracker creates a tracker
func NewSimulationTracker(cfg SimulationConfig, subscriptions SubscriptionSource, tokens TokenSource, api SimulationAPI, store storage.OptionStore, opts ...SimulationOption) (*SimulationTracker, error) {
	if strings.TrimSpace(cfg.EventType) == "" {
		return nil, errors.ConfigError("simulation event type is required")
	}
	if subscriptions == nil || tokens == nil || api == nil || store == nil {
		return nil, errors.ConfigError("simulation tracker dependencies are incomplete")
	}

	s := &SimulationTracker{
		config:        cfg,
		subscriptions: subscriptions,
		tokens:        tokens,
		api:           api,
		store:         store,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Component("simulation")
	}
	return s, nil
}

// Start asks the provider to send a simulated event and records it as waiting.
// It fails with a not_registered error when no subscription is stored.
func (s *SimulationTracker) Start(ctx context.Context) (*SimulationRecord, error) {
	sub, err := s.subscriptions.Subscription(ctx)
	if err != nil {
		return nil, err
	}

	var eventID string
	err = callWithToken(ctx, s.tokens, func(token string) error {
		event, err := s.api.SimulateEvent(ctx, token, sub.ID, s.config.EventType, s.config.ResourceVersion)
		if err != nil {
			return err
		}
		eventID = event.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	record := &SimulationRecord{
		SchemaVersion: schemaVersion,
		EventID:       eventID,
		EventType:     s.config.EventType,
		State:         SimulationWaiting,
		StartedAt:     s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := saveDocument(ctx, s.store, SimulationKey, record); err != nil {
		return nil, errors.InternalError("failed to persist simulation", err)
	}

	s.logger.Info("Simulation started",
		logging.Field{Key: "event_id", Value: eventID},
		logging.Field{Key: "event_type", Value: s.config.EventType},
		logging.Field{Key: "webhook_id", Value: sub.ID},
	)
	return record, nil
}

// Receive marks the pending simulation as received when event is the one
// being waited for. It is safe to call for every inbound event and never
// fails: store errors are logged and reported as false.
func (s *SimulationTracker) Receive(ctx context.Context, event *InboundEvent) bool {
	if event == nil || event.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("Failed to read simulation record", logging.Err(err))
		return false
	}
	if record == nil || record.EventID == "" || record.EventID != event.ID {
		return false
	}
	if record.State == SimulationReceived {
		return true
	}

	receivedAt := s.now().UTC()
	record.State = SimulationReceived
	record.ReceivedAt = &receivedAt
	if err := saveDocument(ctx, s.store, SimulationKey, record); err != nil {
		s.logger.Warn("Failed to persist received simulation", logging.Field{Key: "event_id", Value: event.ID}, logging.Err(err))
		return false
	}

	s.logger.Info("Simulated event received",
		logging.Field{Key: "event_id", Value: event.ID},
		logging.Field{Key: "latency", Value: receivedAt.Sub(record.StartedAt).String()},
	)
	return true
}

// State returns the current state or a not_found error when nothing was started
func (s *SimulationTracker) State(ctx context.Context) (SimulationState, error) {
	record, err := s.Record(ctx)
	if err != nil {
		return "", err
	}
	return record.State, nil
}

// Record returns the full simulation record or a not_found error
func (s *SimulationTracker) Record(ctx context.Context) (*SimulationRecord, error) {
	record, err := s.load(ctx)
	if err != nil {
		return nil, errors.InternalError("failed to read simulation record", err)
	}
	if record == nil {
		return nil, errors.NotFoundError("simulation")
	}
	return record, nil
}

// Clear forgets the simulation; State reports not_found afterwards
func (s *SimulationTracker) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeleteOption(ctx, SimulationKey)
}

func (s *SimulationTracker) load(ctx context.Context) (*SimulationRecord, error) {
	var record SimulationRecord
	found, err := loadDocument(ctx, s.store, SimulationKey, &record, s.logger)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}
