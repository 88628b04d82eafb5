package app

import (
	"context"
	"time"

	"paypal-gateway/internal/auth"
	"paypal-gateway/internal/common/cache"
	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/common/ratelimit"
	"paypal-gateway/internal/config"
	"paypal-gateway/internal/crypto"
	"paypal-gateway/internal/events"
	"paypal-gateway/internal/locks"
	"paypal-gateway/internal/oauth2"
	"paypal-gateway/internal/paypal"
	"paypal-gateway/internal/publisher"
	"paypal-gateway/internal/redis"
	"paypal-gateway/internal/scheduler"
	"paypal-gateway/internal/signature"
	"paypal-gateway/internal/storage"
	"paypal-gateway/internal/webhooks"
)

// Version is reported by /health and the startup log
const Version = "1.0.0"

// App holds all the application dependencies
type App struct {
	Config        *config.Config
	Storage       storage.Store
	RedisClient   *redis.Client
	TokenCache    cache.Cache
	Locker        locks.Locker
	Scheduler     *scheduler.Queue
	Authenticator *oauth2.Authenticator
	PayPal        *paypal.Client
	Publisher     publisher.Publisher
	Handlers      *webhooks.HandlerSet
	Registrar     *webhooks.Registrar
	Simulations   *webhooks.SimulationTracker
	Dispatcher    *webhooks.Dispatcher
	OperatorAuth  *auth.Auth
	RateLimiter   *ratelimit.LocalLimiter
	Logger        logging.Logger
}

// New creates a new application instance with all dependencies. Nothing is
// registered with PayPal and no job runs until Start is called.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.Component("app"),
	}

	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		if cfg.OrderSyncBroker == "redis" {
			return nil, err
		}
		// Redis is optional, just log the error
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
	}

	if err := app.initializeAuthenticator(); err != nil {
		return nil, err
	}

	app.PayPal = paypal.NewClient(cfg.PayPalAPIBaseURL)

	if err := app.initializePublisher(ctx); err != nil {
		return nil, err
	}

	if err := app.initializeWebhooks(); err != nil {
		return nil, err
	}

	if cfg.AdminJWTSecret != "" {
		operatorAuth, err := auth.New(cfg.AdminJWTSecret, app.TokenCache, app.Logger)
		if err != nil {
			return nil, err
		}
		app.OperatorAuth = operatorAuth
	} else {
		app.Logger.Warn("ADMIN_JWT_SECRET not set, operator API is unauthenticated")
	}

	if cfg.OperatorRateLimitRPS > 0 {
		limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.OperatorRateLimitRPS,
			BurstSize:         cfg.OperatorRateLimitBurst,
			Enabled:           true,
		})
		if err != nil {
			return nil, errors.ConfigError("invalid operator rate limit: " + err.Error())
		}
		app.RateLimiter = limiter
	}

	ok = true
	return app, nil
}

func (app *App) initializeAuthenticator() error {
	if app.RedisClient != nil {
		app.TokenCache = cache.NewRedisCache(app.RedisClient, "paypal-gateway:")
	} else {
		app.TokenCache = cache.NewLocalCache(5 * time.Minute)
	}

	var opts []oauth2.Option
	if app.Config.EncryptionKey != "" {
		sealer, err := crypto.NewSealer(app.Config.EncryptionKey)
		if err != nil {
			return errors.ConfigError("invalid CONFIG_ENCRYPTION_KEY: " + err.Error())
		}
		opts = append(opts, oauth2.WithSealer(sealer))
	}

	authenticator, err := oauth2.NewAuthenticator(oauth2.Config{
		BaseURL:      app.Config.PayPalAPIBaseURL,
		ClientID:     app.Config.PayPalClientID,
		ClientSecret: app.Config.PayPalClientSecret,
	}, app.TokenCache, opts...)
	if err != nil {
		return err
	}
	app.Authenticator = authenticator
	return nil
}

func (app *App) initializePublisher(ctx context.Context) error {
	cfg := app.Config
	pubCfg := publisher.Config{
		Broker:       cfg.OrderSyncBroker,
		Topic:        cfg.OrderSyncTopic,
		RabbitMQURL:  cfg.RabbitMQURL,
		KafkaBrokers: cfg.KafkaBrokers,
		AWSRegion:    cfg.AWSRegion,
		AWSCredentials: publisher.AWSCredentials{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SessionToken:    cfg.AWSSessionToken,
		},
		AWSSNSTopicARN:     cfg.AWSSNSTopicARN,
		AWSSQSQueueURL:     cfg.AWSSQSQueueURL,
		GCPProjectID:       cfg.GCPProjectID,
		GCPPubSubTopic:     cfg.GCPPubSubTopic,
		GCPCredentialsFile: cfg.GCPCredentialsFile,
	}
	if app.RedisClient != nil {
		pubCfg.RedisClient = app.RedisClient
	}

	pub, err := publisher.New(ctx, pubCfg)
	if err != nil {
		return err
	}
	app.Publisher = pub
	app.Logger.Info("Order sync publisher ready",
		logging.Field{Key: "broker", Value: pub.Name()},
		logging.Field{Key: "topic", Value: cfg.OrderSyncTopic},
	)
	return nil
}

func (app *App) initializeWebhooks() error {
	cfg := app.Config

	set, err := webhooks.NewHandlerSet(events.DefaultHandlers(app.Storage, app.Publisher, nil)...)
	if err != nil {
		return err
	}
	for _, h := range set.Shadowed() {
		app.Logger.Warn("Handler shadowed by an earlier registration",
			logging.Field{Key: "event_type", Value: h.EventType()},
			logging.Field{Key: "handler", Value: webhooks.HandlerName(h)},
		)
	}
	app.Handlers = set

	app.Scheduler = scheduler.NewQueue(nil)

	if app.RedisClient != nil {
		locker, err := locks.NewRedsyncLocker(app.RedisClient, nil)
		if err != nil {
			return err
		}
		app.Locker = locker
	} else {
		app.Locker = locks.NewLocalLocker()
	}

	registrar, err := webhooks.NewRegistrar(webhooks.RegistrarConfig{
		CallbackURL: cfg.CallbackURL(),
		RetryDelay:  cfg.WebhookRetryDelay,
	}, set, app.Authenticator, app.PayPal, app.Storage, app.Scheduler, webhooks.WithLocker(app.Locker))
	if err != nil {
		return err
	}
	app.Registrar = registrar

	tracker, err := webhooks.NewSimulationTracker(webhooks.SimulationConfig{
		EventType:       cfg.SimulationEventType,
		ResourceVersion: cfg.SimulationResourceVersion,
	}, registrar, app.Authenticator, app.PayPal, app.Storage)
	if err != nil {
		return err
	}
	app.Simulations = tracker

	dispatcherOpts := []webhooks.DispatcherOption{webhooks.WithReceiver(tracker)}
	switch cfg.WebhookVerification {
	case "paypal":
		dispatcherOpts = append(dispatcherOpts, webhooks.WithVerifier(
			webhooks.NewPayPalVerifier(registrar, app.Authenticator, app.PayPal, nil),
		))
	case "hmac":
		verifier, err := signature.NewVerifier(signature.Config{
			Header: cfg.WebhookHMACHeader,
			Secret: cfg.WebhookHMACSecret,
		}, nil)
		if err != nil {
			return errors.ConfigError("invalid HMAC verification settings: " + err.Error())
		}
		dispatcherOpts = append(dispatcherOpts, webhooks.WithVerifier(webhooks.NewHMACVerifier(verifier)))
	default:
		app.Logger.Warn("Webhook signature verification disabled")
	}
	app.Dispatcher = webhooks.NewDispatcher(set, dispatcherOpts...)

	return nil
}

// Start runs the retry scheduler and, when configured, registers the webhook.
// A failed registration only schedules the retry; it never stops startup.
func (app *App) Start(ctx context.Context) {
	app.Scheduler.Start()

	if !app.Config.WebhookRegisterOnStart {
		app.Logger.Info("Webhook registration on start disabled")
		return
	}
	if app.Registrar.Register(ctx) {
		return
	}
	if at, ok := app.Registrar.NextRetry(); ok {
		app.Logger.Warn("Webhook registration failed, retry scheduled", logging.Field{Key: "retry_at", Value: at})
	}
}

// Shutdown stops background jobs, waiting for a running retry up to ctx's deadline
func (app *App) Shutdown(ctx context.Context) error {
	if app.Scheduler == nil {
		return nil
	}
	return app.Scheduler.Stop(ctx)
}

// Close releases all resources
func (app *App) Close() {
	if app.Publisher != nil {
		if err := app.Publisher.Close(); err != nil {
			app.Logger.Warn("Error closing publisher", logging.Err(err))
		}
	}
	if app.Locker != nil {
		_ = app.Locker.Close()
	}
	if app.Storage != nil {
		_ = app.Storage.Close()
	}
	if app.RedisClient != nil {
		_ = app.RedisClient.Close()
	}
}
