package publisher

import (
	"context"
	"encoding/json"
	"time"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
)

// RedisPublishClient is the subset of the redis client used for PUBLISH.
type RedisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) (int64, error)
}

// redisEnvelope is the JSON document published on the channel.
type redisEnvelope struct {
	ID        string            `json:"id"`
	Key       string            `json:"key,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Body      json.RawMessage   `json:"body"`
}

// RedisPublisher publishes messages on a Redis pub/sub channel.
type RedisPublisher struct {
	client  RedisPublishClient
	channel string
	logger  logging.Logger
}

// NewRedisPublisher publishes to a Redis pub/sub channel
func NewRedisPublisher(client RedisPublishClient, channel string, logger logging.Logger) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.ConfigError("redis publisher requires a redis client")
	}
	if channel == "" {
		return nil, errors.ConfigError("redis publisher requires a channel")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}, nil
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.ValidationError("message is required")
	}

	body := json.RawMessage(msg.Body)
	if !json.Valid(body) {
		encoded, err := json.Marshal(string(msg.Body))
		if err != nil {
			return errors.InternalError("failed to encode message body", err)
		}
		body = encoded
	}

	channel := topicOf(msg, p.channel)
	receivers, err := p.client.Publish(ctx, channel, redisEnvelope{
		ID:        msg.ID,
		Key:       msg.Key,
		Headers:   msg.Headers,
		Timestamp: msg.Timestamp.UTC(),
		Body:      body,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish to redis", err)
	}

	p.logger.Debug("Message published to Redis",
		logging.Field{Key: "message_id", Value: msg.ID},
		logging.Field{Key: "channel", Value: channel},
		logging.Field{Key: "receivers", Value: receivers},
	)
	return nil
}

// Close is a no-op; the redis client is owned by the caller.
func (p *RedisPublisher) Close() error { return nil }
