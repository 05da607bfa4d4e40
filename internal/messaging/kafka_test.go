package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpick/finpick-server/pkg/models"
)

func TestInteractionEvent_Serialization(t *testing.T) {
	t.Run("interaction event round-trips", func(t *testing.T) {
		interaction := models.RecommendationInteraction{
			ID:               uuid.New(),
			RecommendationID: uuid.New(),
			Action:           models.ActionClick,
			Products:         []models.ProductRef{{ID: "dep-1", Type: models.ProductDeposit, Name: "안심 정기예금"}},
			Timestamp:        time.Now().UTC(),
		}
		event := InteractionEvent{
			EventID:     uuid.New(),
			Kind:        EventKindInteraction,
			UserID:      "user-1",
			Interaction: &interaction,
			Timestamp:   time.Now().UTC(),
		}

		eventBytes, err := json.Marshal(event)
		require.NoError(t, err)

		var decoded InteractionEvent
		require.NoError(t, json.Unmarshal(eventBytes, &decoded))

		assert.Equal(t, event.EventID, decoded.EventID)
		assert.Equal(t, EventKindInteraction, decoded.Kind)
		assert.Equal(t, "user-1", decoded.UserID)
		require.NotNil(t, decoded.Interaction)
		assert.Equal(t, models.ActionClick, decoded.Interaction.Action)
		assert.Nil(t, decoded.Feedback)
	})

	t.Run("feedback event round-trips", func(t *testing.T) {
		record := models.FeedbackRecord{
			ID:               uuid.New(),
			RecommendationID: uuid.New(),
			Rating:           4,
			Feedback:         "금리가 마음에 들어요",
			Timestamp:        time.Now().UTC(),
		}
		event := InteractionEvent{
			EventID:   uuid.New(),
			Kind:      EventKindFeedback,
			UserID:    "user-1",
			Feedback:  &record,
			Timestamp: time.Now().UTC(),
		}

		eventBytes, err := json.Marshal(event)
		require.NoError(t, err)

		var decoded InteractionEvent
		require.NoError(t, json.Unmarshal(eventBytes, &decoded))

		assert.Equal(t, EventKindFeedback, decoded.Kind)
		require.NotNil(t, decoded.Feedback)
		assert.Equal(t, 4, decoded.Feedback.Rating)
		assert.Nil(t, decoded.Interaction)
	})

	t.Run("unset payload fields are omitted", func(t *testing.T) {
		event := InteractionEvent{
			EventID:   uuid.New(),
			Kind:      EventKindInteraction,
			UserID:    "user-1",
			Timestamp: time.Now().UTC(),
		}

		eventBytes, err := json.Marshal(event)
		require.NoError(t, err)

		assert.NotContains(t, string(eventBytes), `"feedback"`)
	})
}

func TestProcessWithRetry(t *testing.T) {
	newBus := func() *MessageBus {
		return &MessageBus{
			retryBaseDelay: time.Millisecond,
			logger:         logrus.New(),
		}
	}
	event := InteractionEvent{
		EventID:   uuid.New(),
		Kind:      EventKindInteraction,
		UserID:    "user-1",
		Timestamp: time.Now().UTC(),
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		mb := newBus()

		attempts := 0
		err := mb.processWithRetry(context.Background(), event, func(e InteractionEvent) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient failure")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("handler sees the attempt count", func(t *testing.T) {
		mb := newBus()

		var retryCounts []int
		_ = mb.processWithRetry(context.Background(), event, func(e InteractionEvent) error {
			retryCounts = append(retryCounts, e.RetryCount)
			return errors.New("always failing")
		})

		assert.Equal(t, []int{0, 1, 2, 3}, retryCounts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		mb := newBus()

		attempts := 0
		err := mb.processWithRetry(context.Background(), event, func(e InteractionEvent) error {
			attempts++
			return errors.New("permanent failure")
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retries exceeded")
		assert.Equal(t, 4, attempts)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		mb := newBus()
		mb.retryBaseDelay = time.Minute

		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		done := make(chan error, 1)
		go func() {
			done <- mb.processWithRetry(ctx, event, func(e InteractionEvent) error {
				attempts++
				return errors.New("failing")
			})
		}()

		cancel()
		err := <-done

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}

func TestDLQMessage(t *testing.T) {
	event := InteractionEvent{
		EventID:    uuid.New(),
		Kind:       EventKindInteraction,
		UserID:     "user-1",
		Timestamp:  time.Now().UTC(),
		RetryCount: 3,
	}

	dlqMessage := map[string]interface{}{
		"original_event": event,
		"error":          "processing failed",
		"dlq_timestamp":  time.Now().UTC(),
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(dlqBytes, &decoded))

	assert.Contains(t, decoded, "original_event")
	assert.Contains(t, decoded, "dlq_timestamp")
	assert.Equal(t, "processing failed", decoded["error"])
}

func TestTopicConfiguration(t *testing.T) {
	assert.Equal(t, "interaction-events", InteractionEventsTopic)
	assert.Equal(t, "interaction-events-dlq", InteractionEventsDLQTopic)
	assert.Equal(t, "interaction-processors", ConsumerGroup)
}
