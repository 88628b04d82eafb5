// Package config provides configuration management for the PayPal webhook gateway.
// It loads configuration from environment variables with sensible defaults and
// validates it before the application starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - TLS_CERT_FILE, TLS_KEY_FILE: Serve HTTPS when both are set
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FORMAT: "console" or "json" (default: console)
//   - LOG_FILE: Append logs to this file instead of stdout
//
// PayPal Credentials:
//   - PAYPAL_CLIENT_ID: REST app client id (required)
//   - PAYPAL_CLIENT_SECRET: REST app client secret (required)
//   - PAYPAL_SANDBOX: Use the sandbox API host (default: true)
//   - PAYPAL_API_BASE_URL: Override the API host
//
// Webhooks:
//   - WEBHOOK_PUBLIC_URL: Absolute callback URL registered with PayPal (required)
//   - WEBHOOK_PATH: Local route serving the callback (default: /paypal/v1/incoming)
//   - WEBHOOK_VERIFICATION: "paypal", "hmac" or "none" (default: paypal)
//   - WEBHOOK_HMAC_SECRET: Shared secret for "hmac" verification
//   - WEBHOOK_HMAC_HEADER: Header carrying the HMAC signature (default: X-Signature)
//   - WEBHOOK_REGISTER_ON_START: Register the webhook during startup (default: true)
//   - WEBHOOK_RETRY_DELAY: Delay before a failed registration is retried (default: 60s)
//   - SIMULATION_EVENT_TYPE: Event type used by simulations (default: CHECKOUT.ORDER.APPROVED)
//   - SIMULATION_RESOURCE_VERSION: Resource version requested for simulations
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./paypal_gateway.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_SSL_MODE: PostgreSQL connection settings
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address; empty keeps the token cache in process
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Security Configuration:
//   - CONFIG_ENCRYPTION_KEY: Seals the cached bearer token (32 characters if provided)
//   - ADMIN_JWT_SECRET: Protects the operator API (minimum 32 characters if provided)
//   - OPERATOR_RATE_LIMIT_RPS: Per-client request rate on /api (default: 5, 0 disables)
//   - OPERATOR_RATE_LIMIT_BURST: Burst allowed above that rate (default: 10)
//
// Order Sync:
//   - ORDER_SYNC_BROKER: log, redis, rabbitmq, sns, sqs, kafka or pubsub (default: log)
//   - ORDER_SYNC_TOPIC: Topic, queue or channel name (default: paypal.webhooks)
//   - RABBITMQ_URL, KAFKA_BROKERS, AWS_REGION, AWS_SNS_TOPIC_ARN, AWS_SQS_QUEUE_URL,
//     GCP_PROJECT_ID, GCP_PUBSUB_TOPIC, GCP_CREDENTIALS_FILE: broker settings
//   - AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN: static AWS
//     credentials; the default provider chain is used when unset
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"
)

// Config holds all configuration values for the gateway. The env tag names the
// variable each field is read from and is used in validation messages.
type Config struct {
	Port      string `env:"PORT" validate:"required,numeric"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=console json"`

	TLSCertFile string `env:"TLS_CERT_FILE" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `env:"TLS_KEY_FILE" validate:"required_with=TLSCertFile"`

	PayPalClientID     string `env:"PAYPAL_CLIENT_ID" validate:"required"`
	PayPalClientSecret string `env:"PAYPAL_CLIENT_SECRET" validate:"required"`
	PayPalSandbox      bool   `env:"PAYPAL_SANDBOX"`
	PayPalAPIBaseURL   string `env:"PAYPAL_API_BASE_URL" validate:"required,url"`

	WebhookPublicURL          string        `env:"WEBHOOK_PUBLIC_URL" validate:"required,url"`
	WebhookPath               string        `env:"WEBHOOK_PATH" validate:"required,startswith=/"`
	WebhookVerification       string        `env:"WEBHOOK_VERIFICATION" validate:"oneof=paypal hmac none"`
	WebhookHMACSecret         string        `env:"WEBHOOK_HMAC_SECRET"`
	WebhookHMACHeader         string        `env:"WEBHOOK_HMAC_HEADER"`
	WebhookRegisterOnStart    bool          `env:"WEBHOOK_REGISTER_ON_START"`
	WebhookRetryDelay         time.Duration `env:"WEBHOOK_RETRY_DELAY" validate:"gt=0"`
	SimulationEventType       string        `env:"SIMULATION_EVENT_TYPE" validate:"required"`
	SimulationResourceVersion string        `env:"SIMULATION_RESOURCE_VERSION"`

	DatabaseType     string `env:"DATABASE_TYPE" validate:"oneof=sqlite postgres postgresql"`
	DatabasePath     string `env:"DATABASE_PATH"`
	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     string `env:"POSTGRES_PORT"`
	PostgresDB       string `env:"POSTGRES_DB"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `env:"POSTGRES_SSL_MODE"`

	RedisAddress  string `env:"REDIS_ADDRESS"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" validate:"min=0,max=15"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" validate:"min=1"`

	EncryptionKey  string `env:"CONFIG_ENCRYPTION_KEY" validate:"omitempty,len=32"`
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET" validate:"omitempty,min=32"`

	OperatorRateLimitRPS   int `env:"OPERATOR_RATE_LIMIT_RPS" validate:"min=0"`
	OperatorRateLimitBurst int `env:"OPERATOR_RATE_LIMIT_BURST" validate:"min=1"`

	OrderSyncBroker    string `env:"ORDER_SYNC_BROKER" validate:"oneof=log redis rabbitmq sns sqs kafka pubsub"`
	OrderSyncTopic     string `env:"ORDER_SYNC_TOPIC" validate:"required"`
	RabbitMQURL        string `env:"RABBITMQ_URL"`
	KafkaBrokers       string `env:"KAFKA_BROKERS"`
	AWSRegion          string `env:"AWS_REGION"`
	AWSSNSTopicARN     string `env:"AWS_SNS_TOPIC_ARN"`
	AWSSQSQueueURL     string `env:"AWS_SQS_QUEUE_URL"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSSessionToken    string `env:"AWS_SESSION_TOKEN"`
	GCPProjectID       string `env:"GCP_PROJECT_ID"`
	GCPPubSubTopic     string `env:"GCP_PUBSUB_TOPIC"`
	GCPCredentialsFile string `env:"GCP_CREDENTIALS_FILE"`
}

// Load creates a Config from environment variables, falling back to defaults.
// It does not validate; call Validate on the result.
func Load() *Config {
	sandbox := getBoolEnv("PAYPAL_SANDBOX", true)
	baseURL := LiveBaseURL
	if sandbox {
		baseURL = SandboxBaseURL
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "console")),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		PayPalClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
		PayPalSandbox:      sandbox,
		PayPalAPIBaseURL:   strings.TrimRight(getEnv("PAYPAL_API_BASE_URL", baseURL), "/"),

		WebhookPublicURL:          getEnv("WEBHOOK_PUBLIC_URL", ""),
		WebhookPath:               getEnv("WEBHOOK_PATH", "/paypal/v1/incoming"),
		WebhookVerification:       strings.ToLower(getEnv("WEBHOOK_VERIFICATION", "paypal")),
		WebhookHMACSecret:         getEnv("WEBHOOK_HMAC_SECRET", ""),
		WebhookHMACHeader:         getEnv("WEBHOOK_HMAC_HEADER", "X-Signature"),
		WebhookRegisterOnStart:    getBoolEnv("WEBHOOK_REGISTER_ON_START", true),
		WebhookRetryDelay:         getDurationEnv("WEBHOOK_RETRY_DELAY", time.Minute),
		SimulationEventType:       getEnv("SIMULATION_EVENT_TYPE", "CHECKOUT.ORDER.APPROVED"),
		SimulationResourceVersion: getEnv("SIMULATION_RESOURCE_VERSION", ""),

		DatabaseType:     strings.ToLower(getEnv("DATABASE_TYPE", "sqlite")),
		DatabasePath:     getEnv("DATABASE_PATH", "./paypal_gateway.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "paypal_gateway"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		EncryptionKey:  getEnv("CONFIG_ENCRYPTION_KEY", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		OperatorRateLimitRPS:   getIntEnv("OPERATOR_RATE_LIMIT_RPS", 5),
		OperatorRateLimitBurst: getIntEnv("OPERATOR_RATE_LIMIT_BURST", 10),

		OrderSyncBroker:    strings.ToLower(getEnv("ORDER_SYNC_BROKER", "log")),
		OrderSyncTopic:     getEnv("ORDER_SYNC_TOPIC", "paypal.webhooks"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		AWSRegion:          getEnv("AWS_REGION", ""),
		AWSSNSTopicARN:     getEnv("AWS_SNS_TOPIC_ARN", ""),
		AWSSQSQueueURL:     getEnv("AWS_SQS_QUEUE_URL", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:    getEnv("AWS_SESSION_TOKEN", ""),
		GCPProjectID:       getEnv("GCP_PROJECT_ID", ""),
		GCPPubSubTopic:     getEnv("GCP_PUBSUB_TOPIC", ""),
		GCPCredentialsFile: getEnv("GCP_CREDENTIALS_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts the strconv.ParseBool spellings; anything else yields the default.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		// Surface the bad value through validation instead of silently defaulting.
		return -1
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		return 0
	}
	return defaultValue
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate checks field formats and cross-field requirements. It returns the
// first problem found, naming the environment variable to fix.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			return describeFieldError(fieldErrs[0])
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if port, _ := strconv.Atoi(c.Port); port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.WebhookVerification == "hmac" && c.WebhookHMACSecret == "" {
		return fmt.Errorf("WEBHOOK_HMAC_SECRET is required when WEBHOOK_VERIFICATION is 'hmac'")
	}

	if c.IsPostgres() {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	} else if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required when using SQLite")
	}

	return c.validateBroker()
}

func (c *Config) validateBroker() error {
	required := map[string][]struct{ name, value string }{
		"redis":    {{"REDIS_ADDRESS", c.RedisAddress}},
		"rabbitmq": {{"RABBITMQ_URL", c.RabbitMQURL}},
		"kafka":    {{"KAFKA_BROKERS", c.KafkaBrokers}},
		"sns":      {{"AWS_REGION", c.AWSRegion}, {"AWS_SNS_TOPIC_ARN", c.AWSSNSTopicARN}},
		"sqs":      {{"AWS_REGION", c.AWSRegion}, {"AWS_SQS_QUEUE_URL", c.AWSSQSQueueURL}},
		"pubsub":   {{"GCP_PROJECT_ID", c.GCPProjectID}},
	}
	for _, field := range required[c.OrderSyncBroker] {
		if field.value == "" {
			return fmt.Errorf("%s is required when ORDER_SYNC_BROKER is '%s'", field.name, c.OrderSyncBroker)
		}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s environment variable is required", fe.Field())
	case "url":
		return fmt.Errorf("%s must be an absolute URL", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", fe.Field(), fe.Param())
	case "len":
		return fmt.Errorf("%s must be exactly %s characters when provided", fe.Field(), fe.Param())
	case "min":
		return fmt.Errorf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", fe.Field(), fe.Param())
	case "required_with":
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together (%s is missing)", fe.Field())
	case "gt":
		return fmt.Errorf("%s must be a positive duration", fe.Field())
	default:
		return fmt.Errorf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// IsPostgres reports whether the PostgreSQL backend is selected
func (c *Config) IsPostgres() bool {
	return c.DatabaseType == "postgres" || c.DatabaseType == "postgresql"
}

// PostgresDSN builds a libpq connection string from the POSTGRES_* settings
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword, c.PostgresSSLMode)
}

// CallbackURL returns the URL registered with PayPal for event delivery
func (c *Config) CallbackURL() string {
	return c.WebhookPublicURL
}
