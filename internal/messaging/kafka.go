package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/finpick/finpick-server/internal/config"
	"github.com/finpick/finpick-server/pkg/models"
)

const (
	InteractionEventsTopic    = "interaction-events"
	InteractionEventsDLQTopic = "interaction-events-dlq"
	ConsumerGroup             = "interaction-processors"
)

const (
	EventKindInteraction = "interaction"
	EventKindFeedback    = "feedback"
)

// InteractionEvent is the envelope for everything the server publishes to
// the interaction stream. Exactly one of Interaction or Feedback is set,
// discriminated by Kind.
type InteractionEvent struct {
	EventID     uuid.UUID                         `json:"event_id"`
	Kind        string                            `json:"kind"`
	UserID      string                            `json:"user_id"`
	Interaction *models.RecommendationInteraction `json:"interaction,omitempty"`
	Feedback    *models.FeedbackRecord            `json:"feedback,omitempty"`
	Timestamp   time.Time                         `json:"timestamp"`
	RetryCount  int                               `json:"retry_count"`
}

type MessageBus struct {
	writer         *kafka.Writer
	reader         *kafka.Reader
	dlqWriter      *kafka.Writer
	retryBaseDelay time.Duration
	logger         *logrus.Logger
}

func NewMessageBus(cfg *config.Config, logger *logrus.Logger) (*MessageBus, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        InteractionEventsTopic,
		Balancer:     &kafka.Hash{}, // Key by user ID so a user's events stay ordered
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          InteractionEventsTopic,
		GroupID:        ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        InteractionEventsDLQTopic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &MessageBus{
		writer:         writer,
		reader:         reader,
		dlqWriter:      dlqWriter,
		retryBaseDelay: time.Second,
		logger:         logger,
	}, nil
}

// PublishInteraction emits a recommendation interaction (view, click, save,
// convert) to the interaction stream.
func (mb *MessageBus) PublishInteraction(ctx context.Context, userID string, interaction models.RecommendationInteraction) error {
	event := InteractionEvent{
		EventID:     uuid.New(),
		Kind:        EventKindInteraction,
		UserID:      userID,
		Interaction: &interaction,
		Timestamp:   time.Now(),
	}
	return mb.publish(ctx, event)
}

// PublishFeedback emits an explicit rating event to the interaction stream.
func (mb *MessageBus) PublishFeedback(ctx context.Context, userID string, record models.FeedbackRecord) error {
	event := InteractionEvent{
		EventID:   uuid.New(),
		Kind:      EventKindFeedback,
		UserID:    userID,
		Feedback:  &record,
		Timestamp: time.Now(),
	}
	return mb.publish(ctx, event)
}

func (mb *MessageBus) publish(ctx context.Context, event InteractionEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(event.UserID),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mb.writer.WriteMessages(writeCtx, kafkaMessage); err != nil {
		mb.logger.WithError(err).WithField("event_id", event.EventID).Error("Failed to publish event to Kafka")
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"kind":     event.Kind,
		"topic":    InteractionEventsTopic,
	}).Debug("Event published to Kafka")

	return nil
}

// ConsumeEvents drains the interaction stream for downstream processing,
// such as refreshing the similarity graph. Events that keep failing after
// retries land in the DLQ.
func (mb *MessageBus) ConsumeEvents(ctx context.Context, handler func(InteractionEvent) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			message, err := mb.reader.ReadMessage(ctx)
			if err != nil {
				mb.logger.WithError(err).Error("Failed to read event from Kafka")
				continue
			}

			var event InteractionEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				mb.logger.WithError(err).Error("Failed to unmarshal interaction event")
				continue
			}

			if err := mb.processWithRetry(ctx, event, handler); err != nil {
				mb.logger.WithError(err).WithField("event_id", event.EventID).Error("Failed to process event after retries")

				if dlqErr := mb.sendToDLQ(ctx, event, err); dlqErr != nil {
					mb.logger.WithError(dlqErr).Error("Failed to send event to DLQ")
				}
			}
		}
	}
}

func (mb *MessageBus) processWithRetry(ctx context.Context, event InteractionEvent, handler func(InteractionEvent) error) error {
	maxRetries := 3

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := mb.retryBaseDelay * time.Duration(1<<uint(attempt-1))
			mb.logger.WithFields(logrus.Fields{
				"event_id": event.EventID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying event processing")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		event.RetryCount = attempt
		if err := handler(event); err != nil {
			mb.logger.WithError(err).WithFields(logrus.Fields{
				"event_id": event.EventID,
				"attempt":  attempt,
			}).Warn("Event processing failed")

			if attempt == maxRetries {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			continue
		}

		return nil
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (mb *MessageBus) sendToDLQ(ctx context.Context, event InteractionEvent, originalError error) error {
	dlqMessage := map[string]interface{}{
		"original_event": event,
		"error":          originalError.Error(),
		"dlq_timestamp":  time.Now(),
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(event.EventID.String()),
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "original_topic", Value: []byte(InteractionEventsTopic)},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := mb.dlqWriter.WriteMessages(ctx, kafkaMessage); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"error":    originalError.Error(),
	}).Warn("Event sent to DLQ")

	return nil
}

func (mb *MessageBus) Close() error {
	var errors []error

	if err := mb.writer.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close writer: %w", err))
	}

	if err := mb.reader.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close reader: %w", err))
	}

	if err := mb.dlqWriter.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors closing message bus: %v", errors)
	}

	return nil
}

// GetMetrics exposes reader statistics for the monitoring endpoint.
func (mb *MessageBus) GetMetrics() map[string]interface{} {
	stats := mb.reader.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"bytes_read":      stats.Bytes,
		"rebalances":      stats.Rebalances,
		"timeouts":        stats.Timeouts,
		"errors":          stats.Errors,
	}
}
