// Package webhooks is the PayPal webhook core: the handler set that routes
// event types, the registrar that subscribes the callback URL, the dispatcher
// that serves provider callbacks and the tracker for simulated events.
//
// Components talk to the outside world through the narrow interfaces below so
// tests can substitute in-memory fakes.
package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/oauth2"
	"paypal-gateway/internal/paypal"
	"paypal-gateway/internal/scheduler"
	"paypal-gateway/internal/storage"
)

// Option keys of the documents this package persists
const (
	SubscriptionKey      = "webhook_subscription"
	RegistrationErrorKey = "webhook_registration_error"
	SimulationKey        = "webhook_simulation"

	// RetryJobName is the scheduler name of the deferred registration retry
	RetryJobName = "register-webhooks-retry"

	// schemaVersion is written into every persisted document. Documents with
	// a higher version are treated as absent.
	schemaVersion = 1
)

// InboundEvent is the decoded body of a provider callback
type InboundEvent struct {
	ID              string          `json:"id"`
	EventType       string          `json:"event_type"`
	ResourceType    string          `json:"resource_type,omitempty"`
	ResourceVersion string          `json:"resource_version,omitempty"`
	Summary         string          `json:"summary,omitempty"`
	CreateTime      string          `json:"create_time,omitempty"`
	Resource        json.RawMessage `json:"resource,omitempty"`
}

// Subscription is the locally persisted record of a successful registration
type Subscription struct {
	SchemaVersion int       `json:"schema_version"`
	ID            string    `json:"id"`
	CallbackURL   string    `json:"url"`
	EventTypes    []string  `json:"event_types"`
	RegisteredAt  time.Time `json:"registered_at"`
}

func (s *Subscription) version() int { return s.SchemaVersion }

// RegistrationFailure is shown to operators until the next successful registration
type RegistrationFailure struct {
	SchemaVersion int       `json:"schema_version"`
	Error         string    `json:"error"`
	FailedAt      time.Time `json:"failed_at"`
	RetryAt       time.Time `json:"retry_at"`
}

func (f *RegistrationFailure) version() int { return f.SchemaVersion }

// SimulationState is the lifecycle of a simulated event
type SimulationState string

const (
	SimulationWaiting  SimulationState = "waiting"
	SimulationReceived SimulationState = "received"
)

// SimulationRecord is the persisted state of the last simulation
type SimulationRecord struct {
	SchemaVersion int             `json:"schema_version"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type,omitempty"`
	State         SimulationState `json:"state"`
	StartedAt     time.Time       `json:"started_at"`
	ReceivedAt    *time.Time      `json:"received_at,omitempty"`
}

func (r *SimulationRecord) version() int { return r.SchemaVersion }

// TokenSource supplies bearer tokens for provider calls
type TokenSource interface {
	GetToken(ctx context.Context) (oauth2.AccessToken, error)
	Invalidate(ctx context.Context) error
}

// WebhookAPI manages webhook registrations at the provider
type WebhookAPI interface {
	CreateWebhook(ctx context.Context, token, callbackURL string, eventTypes []string) (*paypal.Webhook, error)
	ListWebhooks(ctx context.Context, token string) ([]paypal.Webhook, error)
	DeleteWebhook(ctx context.Context, token, id string) error
}

// SimulationAPI fires synthetic events
type SimulationAPI interface {
	SimulateEvent(ctx context.Context, token, webhookID, eventType, resourceVersion string) (*paypal.SimulatedEvent, error)
}

// SignatureAPI asks the provider to vouch for a delivery
type SignatureAPI interface {
	VerifySignature(ctx context.Context, token string, req paypal.VerifySignatureRequest) (bool, error)
}

// Scheduler runs named one-shot jobs; scheduling a name again replaces the pending job
type Scheduler interface {
	ScheduleOnce(name string, at time.Time, job scheduler.Job)
	Pending(name string) (time.Time, bool)
	Cancel(name string) bool
}

// SubscriptionSource returns the stored subscription or a not_registered error
type SubscriptionSource interface {
	Subscription(ctx context.Context) (*Subscription, error)
}

type versioned interface {
	version() int
}

// loadDocument reads key into doc. Missing, unparsable and newer documents
// all report found=false; only store failures are returned as errors.
func loadDocument(ctx context.Context, store storage.OptionStore, key string, doc versioned, logger logging.Logger) (bool, error) {
	raw, found, err := store.GetOption(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		logger.Warn("Ignoring unreadable document", logging.Field{Key: "key", Value: key}, logging.Err(err))
		return false, nil
	}
	if doc.version() > schemaVersion {
		logger.Warn("Ignoring document with newer schema",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "schema_version", Value: doc.version()},
		)
		return false, nil
	}
	return true, nil
}

func saveDocument(ctx context.Context, store storage.OptionStore, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return store.SetOption(ctx, key, string(data))
}

// callWithToken runs call with a bearer token. When the provider rejects the
// token it is dropped from the cache and the call is tried once more.
func callWithToken(ctx context.Context, tokens TokenSource, call func(token string) error) error {
	token, err := tokens.GetToken(ctx)
	if err != nil {
		return err
	}
	err = call(token.Token)
	if !paypal.IsUnauthorized(err) {
		return err
	}

	if invErr := tokens.Invalidate(ctx); invErr != nil {
		return err
	}
	if token, err = tokens.GetToken(ctx); err != nil {
		return err
	}
	return call(token.Token)
}
