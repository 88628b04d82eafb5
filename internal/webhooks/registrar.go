package webhooks

import (
	"context"
	"strings"
	"time"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/locks"
	"paypal-gateway/internal/storage"
)

const registrationLockKey = "register-webhooks"

// RegistrarConfig holds the static part of the subscription
type RegistrarConfig struct {
	CallbackURL string
	RetryDelay  time.Duration
	LockTTL     time.Duration
}

// Registrar subscribes the callback URL to every handled event type.
// Registration is idempotent: existing registrations for the same URL are
// removed before a new one is created.
type Registrar struct {
	config    RegistrarConfig
	handlers  *HandlerSet
	tokens    TokenSource
	api       WebhookAPI
	store     storage.OptionStore
	scheduler Scheduler
	locker    locks.Locker
	logger    logging.Logger
	now       func() time.Time
}

// RegistrarOption configures a Registrar
type RegistrarOption func(*Registrar)

// WithLocker serialises registrations across instances
func WithLocker(locker locks.Locker) RegistrarOption {
	return func(r *Registrar) { r.locker = locker }
}

// WithRegistrarLogger replaces the component logger
func WithRegistrarLogger(logger logging.Logger) RegistrarOption {
	return func(r *Registrar) { r.logger = logger }
}

// WithRegistrarClock replaces time.Now, for tests
func WithRegistrarClock(now func() time.Time) RegistrarOption {
	return func(r *Registrar) { r.now = now }
}

// NewRegistrar creates a registrar
func NewRegistrar(cfg RegistrarConfig, handlers *HandlerSet, tokens TokenSource, api WebhookAPI, store storage.OptionStore, sched Scheduler, opts ...RegistrarOption) (*Registrar, error) {
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, errors.ConfigError("callback URL is required")
	}
	if handlers == nil || tokens == nil || api == nil || store == nil || sched == nil {
		return nil, errors.ConfigError("registrar dependencies are incomplete")
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}

	r := &Registrar{
		config:    cfg,
		handlers:  handlers,
		tokens:    tokens,
		api:       api,
		store:     store,
		scheduler: sched,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.locker == nil {
		r.locker = locks.NewLocalLocker()
	}
	if r.logger == nil {
		r.logger = logging.Component("registrar")
	}
	return r, nil
}

// Descriptor is the subscription Register would create
func (r *Registrar) Descriptor() Subscription {
	return Subscription{
		SchemaVersion: schemaVersion,
		CallbackURL:   r.config.CallbackURL,
		EventTypes:    r.handlers.EventTypes(),
	}
}

// Register subscribes the callback URL. On failure the error is recorded for
// operators, one retry is scheduled after RetryDelay and false is returned.
func (r *Registrar) Register(ctx context.Context) bool {
	err := locks.WithLock(ctx, r.locker, registrationLockKey, r.config.LockTTL, r.register)
	if err == nil {
		return true
	}
	r.fail(ctx, err)
	return false
}

func (r *Registrar) register(ctx context.Context) error {
	desc := r.Descriptor()
	if len(desc.EventTypes) == 0 {
		return errors.ValidationError("no event types to subscribe")
	}

	var removed []string
	err := callWithToken(ctx, r.tokens, func(token string) error {
		existing, err := r.api.ListWebhooks(ctx, token)
		if err != nil {
			return err
		}
		for _, wh := range existing {
			if !sameURL(wh.URL, desc.CallbackURL) {
				continue
			}
			if err := r.api.DeleteWebhook(ctx, token, wh.ID); err != nil {
				return err
			}
			removed = append(removed, wh.ID)
		}

		created, err := r.api.CreateWebhook(ctx, token, desc.CallbackURL, desc.EventTypes)
		if err != nil {
			return err
		}
		desc.ID = created.ID
		return nil
	})
	if err == nil && desc.ID == "" {
		err = errors.RegistrationError("provider returned no registration id", nil)
	}
	if err != nil {
		if len(removed) > 0 {
			// the stored subscription may name a webhook that no longer exists
			r.forgetSubscription(ctx, removed)
		}
		if errors.IsType(err, errors.ErrTypeAuth) || errors.IsType(err, errors.ErrTypeRegistration) {
			return err
		}
		return errors.RegistrationError("webhook registration failed", err)
	}

	desc.RegisteredAt = r.now().UTC()
	if err := saveDocument(ctx, r.store, SubscriptionKey, &desc); err != nil {
		r.forgetSubscription(ctx, removed)
		return errors.RegistrationError("failed to persist subscription", err)
	}
	if err := r.store.DeleteOption(ctx, RegistrationErrorKey); err != nil {
		r.logger.Warn("Failed to clear registration failure", logging.Err(err))
	}

	r.logger.Info("Webhook registered",
		logging.Field{Key: "webhook_id", Value: desc.ID},
		logging.Field{Key: "url", Value: desc.CallbackURL},
		logging.Strings("event_types", desc.EventTypes),
		logging.Strings("replaced", removed),
	)
	return nil
}

func (r *Registrar) forgetSubscription(ctx context.Context, removed []string) {
	if err := r.store.DeleteOption(ctx, SubscriptionKey); err != nil {
		r.logger.Warn("Failed to clear stale subscription", logging.Err(err), logging.Strings("removed", removed))
	}
}

func (r *Registrar) fail(ctx context.Context, cause error) {
	now := r.now().UTC()
	retryAt := now.Add(r.config.RetryDelay)

	r.scheduler.ScheduleOnce(RetryJobName, retryAt, r.retry)

	failure := RegistrationFailure{
		SchemaVersion: schemaVersion,
		Error:         cause.Error(),
		FailedAt:      now,
		RetryAt:       retryAt,
	}
	if err := saveDocument(ctx, r.store, RegistrationErrorKey, &failure); err != nil {
		r.logger.Warn("Failed to persist registration failure", logging.Err(err))
	}

	r.logger.Error("Webhook registration failed", cause,
		logging.Field{Key: "url", Value: r.config.CallbackURL},
		logging.Field{Key: "retry_at", Value: retryAt.Format(time.RFC3339)},
	)
}

// retry is the deferred job. It is a no-op when an equivalent subscription
// was stored after the last recorded failure.
func (r *Registrar) retry(ctx context.Context) error {
	if sub, err := r.Subscription(ctx); err == nil && r.isCurrent(sub) && r.registeredSinceFailure(ctx, sub) {
		r.logger.Info("Webhook already registered, skipping retry", logging.Field{Key: "webhook_id", Value: sub.ID})
		return nil
	}
	if !r.Register(ctx) {
		return errors.RegistrationError("registration retry failed", nil)
	}
	return nil
}

func (r *Registrar) registeredSinceFailure(ctx context.Context, sub *Subscription) bool {
	failure, err := r.LastFailure(ctx)
	if err != nil {
		return false
	}
	return failure == nil || sub.RegisteredAt.After(failure.FailedAt)
}

func (r *Registrar) isCurrent(sub *Subscription) bool {
	want := r.Descriptor()
	if !sameURL(sub.CallbackURL, want.CallbackURL) || len(sub.EventTypes) != len(want.EventTypes) {
		return false
	}
	for i := range want.EventTypes {
		if sub.EventTypes[i] != want.EventTypes[i] {
			return false
		}
	}
	return true
}

// Unregister removes the provider registration and all local webhook state
func (r *Registrar) Unregister(ctx context.Context) bool {
	err := locks.WithLock(ctx, r.locker, registrationLockKey, r.config.LockTTL, r.unregister)
	if err != nil {
		r.logger.Error("Webhook unregistration failed", err, logging.Field{Key: "url", Value: r.config.CallbackURL})
		return false
	}
	return true
}

func (r *Registrar) unregister(ctx context.Context) error {
	var storedID string
	if sub, err := r.Subscription(ctx); err == nil {
		storedID = sub.ID
	} else if !errors.IsType(err, errors.ErrTypeNotRegistered) {
		return err
	}

	var removed []string
	err := callWithToken(ctx, r.tokens, func(token string) error {
		existing, err := r.api.ListWebhooks(ctx, token)
		if err != nil {
			return err
		}
		for _, wh := range existing {
			if wh.ID != storedID && !sameURL(wh.URL, r.config.CallbackURL) {
				continue
			}
			if err := r.api.DeleteWebhook(ctx, token, wh.ID); err != nil {
				return err
			}
			removed = append(removed, wh.ID)
		}
		return nil
	})
	if err != nil {
		if errors.IsType(err, errors.ErrTypeAuth) {
			return err
		}
		return errors.RegistrationError("webhook unregistration failed", err)
	}

	r.scheduler.Cancel(RetryJobName)
	for _, key := range []string{SubscriptionKey, SimulationKey, RegistrationErrorKey} {
		if err := r.store.DeleteOption(ctx, key); err != nil {
			return errors.InternalError("failed to clear webhook state", err).WithContext("key", key)
		}
	}

	r.logger.Info("Webhook unregistered", logging.Strings("removed", removed))
	return nil
}

// Subscription returns the stored subscription or a not_registered error
func (r *Registrar) Subscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	found, err := loadDocument(ctx, r.store, SubscriptionKey, &sub, r.logger)
	if err != nil {
		return nil, errors.InternalError("failed to read subscription", err)
	}
	if !found || sub.ID == "" {
		return nil, errors.NotRegisteredError()
	}
	return &sub, nil
}

// LastFailure returns the last recorded registration failure, or nil
func (r *Registrar) LastFailure(ctx context.Context) (*RegistrationFailure, error) {
	var failure RegistrationFailure
	found, err := loadDocument(ctx, r.store, RegistrationErrorKey, &failure, r.logger)
	if err != nil {
		return nil, errors.InternalError("failed to read registration failure", err)
	}
	if !found {
		return nil, nil
	}
	return &failure, nil
}

// NextRetry reports when the pending retry fires
func (r *Registrar) NextRetry() (time.Time, bool) {
	return r.scheduler.Pending(RetryJobName)
}

func sameURL(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}
