package external

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

const eventSource = "ccas"

// messageWriter is the part of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes assessment events to a Kafka topic
type KafkaEventPublisher struct {
	logger *logrus.Logger
	writer messageWriter
	topic  string
}

// NewKafkaEventPublisher creates a synchronous publisher for the configured topic
func NewKafkaEventPublisher(logger *logrus.Logger, config domain.EventsConfig) (*KafkaEventPublisher, error) {
	if len(config.Brokers) == 0 || config.Topic == "" {
		return nil, fmt.Errorf("%w: event brokers and topic are required", domain.ErrConfiguration)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return newKafkaEventPublisher(logger, writer, config.Topic), nil
}

func newKafkaEventPublisher(logger *logrus.Logger, writer messageWriter, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{logger: logger, writer: writer, topic: topic}
}

// Publish implements domain.EventPublisher. Events are keyed by patient so
// one patient's events stay on one partition.
func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.AssessmentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.PatientID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte(eventSource)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"case_id":    event.CaseID,
			"event_type": event.Type,
		}).Error("Failed to publish event")
		return fmt.Errorf("%w: publish %s: %v", domain.ErrExternalService, event.Type, err)
	}

	p.logger.WithFields(logrus.Fields{
		"case_id":    event.CaseID,
		"event_type": event.Type,
		"topic":      p.topic,
	}).Debug("Event published")

	return nil
}

// Close flushes and closes the writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
