package publisher

import (
	"context"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
)

// PubSubPublisher publishes to a Google Cloud Pub/Sub topic and waits for the
// server-assigned message id before returning.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger logging.Logger
}

// NewPubSubPublisher opens a Pub/Sub client for projectID and publishes to topicID
func NewPubSubPublisher(ctx context.Context, projectID, topicID, credentialsFile string, logger logging.Logger, opts ...option.ClientOption) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, errors.ConfigError("pubsub publisher requires a project id")
	}
	if topicID == "" {
		return nil, errors.ConfigError("pubsub publisher requires a topic")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to check Pub/Sub topic", err)
	}
	if !exists {
		client.Close()
		return nil, errors.ConfigError("pubsub topic does not exist: " + topicID)
	}

	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PubSubPublisher{client: client, topic: topic, logger: logger}, nil
}

func (p *PubSubPublisher) Name() string { return "pubsub" }

func (p *PubSubPublisher) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.ValidationError("message is required")
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       msg.Body,
		Attributes: attributes(msg),
	})
	serverID, err := result.Get(ctx)
	if err != nil {
		return errors.ConnectionError("failed to publish to Pub/Sub", err)
	}

	p.logger.Debug("Message published to Pub/Sub",
		logging.Field{Key: "message_id", Value: msg.ID},
		logging.Field{Key: "pubsub_message_id", Value: serverID},
		logging.Field{Key: "topic_id", Value: p.topic.ID()},
	)
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
