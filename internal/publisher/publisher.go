// Package publisher forwards processed PayPal events to downstream order-sync
// consumers. Each implementation wraps one transport (Redis pub/sub, RabbitMQ,
// SNS, SQS, Kafka, Google Pub/Sub) behind the Publisher interface; LogPublisher
// only writes a log line and is the default when no broker is configured.
package publisher

import (
	"context"
	"strings"
	"time"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
)

// Message is a single event forwarded downstream.
type Message struct {
	ID        string
	Topic     string
	Key       string
	Body      []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Publisher delivers messages to one downstream transport.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, msg *Message) error
	Close() error
}

// Config selects and configures a publisher.
type Config struct {
	Broker string
	Topic  string

	RedisClient RedisPublishClient

	RabbitMQURL string

	KafkaBrokers string

	AWSRegion      string
	AWSSNSTopicARN string
	AWSSQSQueueURL string
	AWSCredentials AWSCredentials

	GCPProjectID       string
	GCPPubSubTopic     string
	GCPCredentialsFile string

	Logger logging.Logger
}

// New builds the publisher named by cfg.Broker. An empty broker selects the
// log publisher.
func New(ctx context.Context, cfg Config) (Publisher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Component("publisher")
	}

	switch strings.ToLower(cfg.Broker) {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "redis":
		return wrap(NewRedisPublisher(cfg.RedisClient, cfg.Topic, logger))
	case "rabbitmq":
		return wrap(NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.Topic, logger))
	case "sns":
		return wrap(NewSNSPublisher(ctx, cfg.AWSRegion, cfg.AWSSNSTopicARN, cfg.AWSCredentials, logger))
	case "sqs":
		return wrap(NewSQSPublisher(ctx, cfg.AWSRegion, cfg.AWSSQSQueueURL, cfg.AWSCredentials, logger))
	case "kafka":
		return wrap(NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic, logger))
	case "pubsub":
		topic := cfg.GCPPubSubTopic
		if topic == "" {
			topic = cfg.Topic
		}
		return wrap(NewPubSubPublisher(ctx, cfg.GCPProjectID, topic, cfg.GCPCredentialsFile, logger))
	default:
		return nil, errors.ConfigError("unsupported order sync broker: " + cfg.Broker)
	}
}

// wrap keeps a failed constructor from yielding a non-nil interface holding a
// nil pointer.
func wrap[P Publisher](p P, err error) (Publisher, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// LogPublisher logs each message and drops it.
type LogPublisher struct {
	logger logging.Logger
}

// NewLogPublisher only logs messages; it backs ORDER_SYNC_BROKER=log
func NewLogPublisher(logger logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.ValidationError("message is required")
	}
	p.logger.WithContext(ctx).Info("Order sync event",
		logging.Field{Key: "message_id", Value: msg.ID},
		logging.Field{Key: "topic", Value: msg.Topic},
		logging.Field{Key: "key", Value: msg.Key},
		logging.Field{Key: "bytes", Value: len(msg.Body)},
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// topicOf returns the message topic, falling back to the publisher default.
func topicOf(msg *Message, fallback string) string {
	if msg.Topic != "" {
		return msg.Topic
	}
	return fallback
}

// attributes flattens the message metadata into string attributes shared by
// the SNS, SQS and Pub/Sub publishers.
func attributes(msg *Message) map[string]string {
	attrs := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		attrs[k] = v
	}
	if msg.ID != "" {
		attrs["message_id"] = msg.ID
	}
	if msg.Key != "" {
		attrs["key"] = msg.Key
	}
	if !msg.Timestamp.IsZero() {
		attrs["timestamp"] = msg.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return attrs
}
