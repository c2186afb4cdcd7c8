package external

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaEventPublisher_Publish(t *testing.T) {
	event := domain.AssessmentEvent{
		Type:        "assessment.completed",
		CaseID:      "case-1",
		PatientID:   "p-1",
		OverallRisk: domain.RiskHigh,
		Urgency:     domain.UrgencyUrgent,
		Detected:    []string{"metabolic_syndrome"},
		OccurredAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("Success", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		writer := &recordingWriter{}
		publisher := newKafkaEventPublisher(logger, writer, "ccas.assessments")

		require.NoError(t, publisher.Publish(context.Background(), event))
		require.Len(t, writer.messages, 1)

		msg := writer.messages[0]
		assert.Equal(t, []byte("p-1"), msg.Key)
		assert.Equal(t, event.OccurredAt, msg.Time)
		require.Len(t, msg.Headers, 2)
		assert.Equal(t, "event-type", msg.Headers[0].Key)
		assert.Equal(t, []byte("assessment.completed"), msg.Headers[0].Value)

		var decoded domain.AssessmentEvent
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, event, decoded)
	})

	t.Run("Write_Failure", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		writer := &recordingWriter{err: errors.New("leader not available")}
		publisher := newKafkaEventPublisher(logger, writer, "ccas.assessments")

		err := publisher.Publish(context.Background(), event)
		assert.ErrorIs(t, err, domain.ErrExternalService)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, "case-1", hook.LastEntry().Data["case_id"])
	})

	t.Run("Close", func(t *testing.T) {
		logger, _ := test.NewNullLogger()
		writer := &recordingWriter{}
		require.NoError(t, newKafkaEventPublisher(logger, writer, "t").Close())
		assert.True(t, writer.closed)
	})
}

func TestNewKafkaEventPublisher_Validation(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := NewKafkaEventPublisher(logger, domain.EventsConfig{Topic: "t"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewKafkaEventPublisher(logger, domain.EventsConfig{Brokers: []string{"localhost:9092"}})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	publisher, err := NewKafkaEventPublisher(logger, domain.EventsConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.NoError(t, publisher.Close())
}
