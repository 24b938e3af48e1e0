package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/social-graph/social-graph/internal/models"
	"github.com/social-graph/social-graph/internal/repository"
	"github.com/social-graph/social-graph/pkg/cache"
	"github.com/social-graph/social-graph/pkg/logger"
	"github.com/social-graph/social-graph/pkg/queue"
)

const defaultUnreadCacheTTL = 5 * time.Minute

// GraphEvent is a state change in the follow graph that fans out to the
// affected user's notification feed.
type GraphEvent struct {
	Type      models.NotificationType
	FromUser  *models.User
	ToUserID  uuid.UUID
	RequestID *uuid.UUID
	ContentID *uuid.UUID
}

type NotificationService struct {
	notifRepo *repository.NotificationRepository
	cache     *cache.RedisClient
	producer  queue.Publisher
	unreadTTL time.Duration
	logger    *logger.Logger
}

func NewNotificationService(
	notifRepo *repository.NotificationRepository,
	cache *cache.RedisClient,
	producer queue.Publisher,
	unreadTTL time.Duration,
	logger *logger.Logger,
) *NotificationService {
	if unreadTTL <= 0 {
		unreadTTL = defaultUnreadCacheTTL
	}
	return &NotificationService{
		notifRepo: notifRepo,
		cache:     cache,
		producer:  producer,
		unreadTTL: unreadTTL,
		logger:    logger,
	}
}

func unreadCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("notif_unread:%s", userID)
}

func unreadChannel(userID uuid.UUID) string {
	return fmt.Sprintf("notif_unread_ch:%s", userID)
}

// Fanout persists exactly one unread notification for the event. Repeated
// identical events each produce a new record; the feed is an activity log,
// not an inbox digest.
func (s *NotificationService) Fanout(ctx context.Context, event GraphEvent) (*models.Notification, error) {
	notification := &models.Notification{
		Type:            event.Type,
		FromUserID:      event.FromUser.ID,
		ToUserID:        event.ToUserID,
		Message:         buildMessage(event),
		IsRead:          false,
		FollowRequestID: event.RequestID,
		ContentID:       event.ContentID,
		CreatedAt:       time.Now(),
	}

	if err := s.notifRepo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to fan out notification: %w", err)
	}

	s.invalidateUnread(ctx, event.ToUserID)
	s.publishEvent(ctx, queue.EventNotificationCreated, notification)

	return notification, nil
}

func buildMessage(event GraphEvent) string {
	name := event.FromUser.Username
	if event.FromUser.DisplayName != "" {
		name = event.FromUser.DisplayName
	}

	switch event.Type {
	case models.NotificationFollow:
		return fmt.Sprintf("%s started following you", name)
	case models.NotificationFollowRequest:
		return fmt.Sprintf("%s requested to follow you", name)
	case models.NotificationFollowAccepted:
		return fmt.Sprintf("%s accepted your follow request", name)
	case models.NotificationLike:
		return fmt.Sprintf("%s liked your post", name)
	case models.NotificationComment:
		return fmt.Sprintf("%s commented on your post", name)
	case models.NotificationMention:
		return fmt.Sprintf("%s mentioned you", name)
	case models.NotificationStoryView:
		return fmt.Sprintf("%s viewed your story", name)
	default:
		return fmt.Sprintf("%s interacted with you", name)
	}
}

func (s *NotificationService) List(ctx context.Context, userID string, offset, limit int) ([]*models.Notification, int64, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	return s.notifRepo.ListByRecipient(ctx, id, offset, limit)
}

// UnreadCount reads through the Redis cache; misses fall back to the store
// with bounded retry and backfill the cache.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, unreadCacheKey(id)); err == nil {
			if count, err := strconv.ParseInt(cached, 10, 64); err == nil {
				return count, nil
			}
		}
	}

	var count int64
	err = withReadRetry(ctx, func() error {
		var innerErr error
		count, innerErr = s.notifRepo.UnreadCount(ctx, id)
		return innerErr
	})
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, unreadCacheKey(id), count, s.unreadTTL); err != nil {
			s.logger.WithError(err).Error("Failed to cache unread count")
		}
	}

	return count, nil
}

// RefreshUnreadCount recomputes the unread count, rewrites the cache entry
// and pushes the new value on the user's channel. The notification worker
// calls this on every notification event.
func (s *NotificationService) RefreshUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.notifRepo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, unreadCacheKey(userID), count, s.unreadTTL); err != nil {
			s.logger.WithError(err).Error("Failed to cache unread count")
		}
		if err := s.cache.Publish(ctx, unreadChannel(userID), count); err != nil {
			s.logger.WithError(err).Error("Failed to publish unread count")
		}
	}

	return count, nil
}

// WatchUnreadCount streams unread-count updates for a user until ctx is
// cancelled. The current count is delivered first, then one value per change
// pushed by the notification worker.
func (s *NotificationService) WatchUnreadCount(ctx context.Context, userID string) (<-chan int64, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	if s.cache == nil {
		return nil, fmt.Errorf("unread count watch requires redis")
	}

	sub := s.cache.Subscribe(ctx, unreadChannel(id))
	updates := make(chan int64, 1)

	if count, err := s.UnreadCount(ctx, userID); err == nil {
		updates <- count
	}

	go func() {
		defer close(updates)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				count, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				select {
				case updates <- count:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return updates, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	nid, err := uuid.Parse(notificationID)
	if err != nil {
		return fmt.Errorf("invalid notification ID: %w", err)
	}

	marked, err := s.notifRepo.MarkAsRead(ctx, nid, uid)
	if err != nil {
		return err
	}
	if !marked {
		return ErrNotificationNotFound
	}

	s.invalidateUnread(ctx, uid)
	s.publishEvent(ctx, queue.EventNotificationRead, &models.Notification{ID: nid, ToUserID: uid})
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}

	if err := s.notifRepo.MarkAllAsRead(ctx, uid); err != nil {
		return err
	}

	s.invalidateUnread(ctx, uid)
	s.publishEvent(ctx, queue.EventNotificationRead, &models.Notification{ToUserID: uid})
	return nil
}

// ApplyRequestAction stamps the follow_request notification with the action
// the recipient took, so the in-app card switches out of its pending state.
func (s *NotificationService) ApplyRequestAction(ctx context.Context, requestID uuid.UUID, action models.NotificationAction) error {
	return s.notifRepo.SetActionTaken(ctx, requestID, action)
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, unreadCacheKey(userID)); err != nil {
		s.logger.WithError(err).Error("Failed to invalidate unread count cache")
	}
}

func (s *NotificationService) publishEvent(ctx context.Context, eventType queue.EventType, notification *models.Notification) {
	if s.producer == nil {
		return
	}
	event := queue.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data: queue.NotificationEventData{
			NotificationID: notification.ID.String(),
			RecipientID:    notification.ToUserID.String(),
			Type:           string(notification.Type),
		},
	}
	if err := s.producer.Publish(ctx, notification.ToUserID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish notification event")
	}
}
