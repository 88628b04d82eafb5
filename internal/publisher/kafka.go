package publisher

import (
	"context"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"paypal-gateway/internal/common/errors"
	"paypal-gateway/internal/common/logging"
)

// kafkaProducer is the part of *kafka.Producer used for publishing.
type kafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaPublisher produces messages and waits for each delivery report.
type KafkaPublisher struct {
	producer kafkaProducer
	topic    string
	logger   logging.Logger
}

// NewKafkaPublisher creates an idempotent producer for the comma separated brokers
func NewKafkaPublisher(brokers, topic string, logger logging.Logger) (*KafkaPublisher, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, errors.ConfigError("kafka publisher requires brokers")
	}
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"client.id":          "paypal-gateway",
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}
	return newKafkaPublisher(producer, topic, logger)
}

func newKafkaPublisher(producer kafkaProducer, topic string, logger logging.Logger) (*KafkaPublisher, error) {
	if topic == "" {
		return nil, errors.ConfigError("kafka publisher requires a topic")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}, nil
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.ValidationError("message is required")
	}

	topic := topicOf(msg, p.topic)
	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value:     msg.Body,
		Timestamp: msg.Timestamp,
	}
	if msg.Key != "" {
		kafkaMsg.Key = []byte(msg.Key)
	}
	for key, value := range msg.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	if msg.ID != "" {
		kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{Key: "message_id", Value: []byte(msg.ID)})
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(kafkaMsg, deliveryChan); err != nil {
		return errors.ConnectionError("failed to produce Kafka message", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.InternalError("unexpected Kafka delivery event", nil)
		}
		if m.TopicPartition.Error != nil {
			return errors.ConnectionError("Kafka delivery failed", m.TopicPartition.Error)
		}
		p.logger.Debug("Message delivered to Kafka",
			logging.Field{Key: "message_id", Value: msg.ID},
			logging.Field{Key: "topic", Value: topic},
			logging.Field{Key: "partition", Value: m.TopicPartition.Partition},
			logging.Field{Key: "offset", Value: m.TopicPartition.Offset.String()},
		)
		return nil
	}
}

func (p *KafkaPublisher) Close() error {
	p.producer.Flush(5000)
	p.producer.Close()
	return nil
}
