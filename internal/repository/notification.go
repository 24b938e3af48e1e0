package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/social-graph/social-graph/internal/models"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).First(&notification, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &notification, nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, toUserID uuid.UUID, offset, limit int) ([]*models.Notification, int64, error) {
	var notifications []*models.Notification
	var total int64

	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("to_user_id = ?", toUserID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Where("to_user_id = ?", toUserID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, total, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, toUserID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("to_user_id = ? AND is_read = ?", toUserID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAsRead is scoped to the recipient so users cannot flip each other's
// read state. Returns false when nothing matched.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, toUserID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND to_user_id = ?", id, toUserID).
		Update("is_read", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark notification as read: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, toUserID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("to_user_id = ? AND is_read = ?", toUserID, false).
		Update("is_read", true).Error; err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return nil
}

// SetActionTaken stamps the follow_request notification that carries the
// given request id with the action the recipient took on it.
func (r *NotificationRepository) SetActionTaken(ctx context.Context, requestID uuid.UUID, action models.NotificationAction) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("follow_request_id = ? AND type = ?", requestID, models.NotificationFollowRequest).
		Update("action_taken", action).Error; err != nil {
		return fmt.Errorf("failed to set notification action: %w", err)
	}
	return nil
}
