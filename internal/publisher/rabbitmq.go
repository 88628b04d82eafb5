package publisher

import (
	"context"
	"sync"

	"github.com/streadway/amqp"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
)

// amqpChannel is the part of *amqp.Channel used for publishing.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher declares a durable queue per topic and publishes
// persistent messages to it through the default exchange.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	queue    string
	logger   logging.Logger
	mu       sync.Mutex
	declared map[string]bool
}

// NewRabbitMQPublisher dials url and publishes to the durable queue
func NewRabbitMQPublisher(url, queue string, logger logging.Logger) (*RabbitMQPublisher, error) {
	if url == "" {
		return nil, errors.ConfigError("rabbitmq publisher requires a url")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to RabbitMQ", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.ConnectionError("failed to open RabbitMQ channel", err)
	}
	p, err := newRabbitMQPublisher(ch, queue, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newRabbitMQPublisher(ch amqpChannel, queue string, logger logging.Logger) (*RabbitMQPublisher, error) {
	if queue == "" {
		return nil, errors.ConfigError("rabbitmq publisher requires a queue")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RabbitMQPublisher{
		ch:       ch,
		queue:    queue,
		logger:   logger,
		declared: make(map[string]bool),
	}, nil
}

func (p *RabbitMQPublisher) Name() string { return "rabbitmq" }

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.ValidationError("message is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	queue := topicOf(msg, p.queue)

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return errors.ConnectionError("failed to declare queue", err)
		}
		p.declared[queue] = true
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	err := p.ch.Publish("", queue, false, false, amqp.Publishing{
		Headers:       headers,
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.ID,
		CorrelationId: msg.Key,
		Timestamp:     msg.Timestamp,
		Body:          msg.Body,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish to RabbitMQ", err)
	}

	p.logger.Debug("Message published to RabbitMQ",
		logging.Field{Key: "message_id", Value: msg.ID},
		logging.Field{Key: "queue", Value: queue},
	)
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
