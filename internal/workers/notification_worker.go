package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/social-graph/social-graph/internal/services"
	"github.com/social-graph/social-graph/pkg/logger"
	"github.com/social-graph/social-graph/pkg/queue"
)

// NotificationWorker keeps the derived unread-count state in step with the
// notification store: every notification event triggers a recount, a cache
// rewrite and a push on the recipient's channel for live watchers.
type NotificationWorker struct {
	notifications *services.NotificationService
	consumer      *queue.KafkaConsumer
	logger        *logger.Logger
}

func NewNotificationWorker(
	notifications *services.NotificationService,
	consumer *queue.KafkaConsumer,
	logger *logger.Logger,
) *NotificationWorker {
	return &NotificationWorker{
		notifications: notifications,
		consumer:      consumer,
		logger:        logger,
	}
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker...")

	return w.consumer.Subscribe(ctx, func(msg queue.Message) error {
		var event queue.Event
		data, err := json.Marshal(msg.Value)
		if err != nil {
			return fmt.Errorf("failed to marshal message value: %w", err)
		}

		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to unmarshal event: %w", err)
		}

		switch event.Type {
		case queue.EventNotificationCreated, queue.EventNotificationRead:
			return w.handleNotificationEvent(ctx, event)
		case queue.EventFollowCreated, queue.EventFollowDeleted,
			queue.EventFollowRequestCreated, queue.EventFollowRequestAccepted,
			queue.EventFollowRequestRejected:
			// Graph events carry no unread-count change of their own; the
			// fan-out emits a notification event when a record lands.
			return nil
		default:
			w.logger.WithField("event_type", event.Type).Warn("Unknown event type")
			return nil
		}
	})
}

func (w *NotificationWorker) handleNotificationEvent(ctx context.Context, event queue.Event) error {
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid notification event data")
	}

	recipient, ok := data["recipient_id"].(string)
	if !ok {
		return fmt.Errorf("missing recipient_id in event data")
	}

	recipientID, err := uuid.Parse(recipient)
	if err != nil {
		return fmt.Errorf("invalid recipient_id: %w", err)
	}

	count, err := w.notifications.RefreshUnreadCount(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to refresh unread count: %w", err)
	}

	w.logger.WithFields(map[string]interface{}{
		"recipient_id": recipient,
		"unread_count": count,
		"event_type":   event.Type,
	}).Info("Refreshed unread count")

	return nil
}

func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker...")
	return w.consumer.Close()
}
