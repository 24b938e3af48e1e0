package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationFollow         NotificationType = "follow"
	NotificationFollowRequest  NotificationType = "follow_request"
	NotificationFollowAccepted NotificationType = "follow_accepted"
	NotificationLike           NotificationType = "like"
	NotificationComment        NotificationType = "comment"
	NotificationMention        NotificationType = "mention"
	NotificationStoryView      NotificationType = "story_view"
)

type NotificationAction string

const (
	ActionAccepted NotificationAction = "accepted"
	ActionRejected NotificationAction = "rejected"
)

// Notification is one entry in a user's activity log. FollowRequestID and
// ActionTaken are set only on follow_request notifications, ContentID only on
// like/comment/mention/story_view.
type Notification struct {
	ID              uuid.UUID           `json:"id" gorm:"type:uuid;primary_key"`
	Type            NotificationType    `json:"type" gorm:"type:varchar(30);not null;index"`
	FromUserID      uuid.UUID           `json:"from_user_id" gorm:"type:uuid;not null;index"`
	ToUserID        uuid.UUID           `json:"to_user_id" gorm:"type:uuid;not null;index"`
	Message         string              `json:"message"`
	IsRead          bool                `json:"is_read" gorm:"default:false;index"`
	FollowRequestID *uuid.UUID          `json:"follow_request_id,omitempty" gorm:"type:uuid;index"`
	ActionTaken     *NotificationAction `json:"action_taken,omitempty" gorm:"type:varchar(20)"`
	ContentID       *uuid.UUID          `json:"content_id,omitempty" gorm:"type:uuid"`
	CreatedAt       time.Time           `json:"created_at" gorm:"index"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

func (Notification) TableName() string {
	return "notifications"
}
