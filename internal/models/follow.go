package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Follow is a directed, accepted follower -> followee relationship. At most
// one row exists per ordered pair, and the pair is never reflexive.
type Follow struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FollowerID  uuid.UUID `json:"follower_id" gorm:"type:uuid;not null;uniqueIndex:idx_follower_following"`
	FollowingID uuid.UUID `json:"following_id" gorm:"type:uuid;not null;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"created_at"`

	Follower  User `json:"follower" gorm:"foreignKey:FollowerID"`
	Following User `json:"following" gorm:"foreignKey:FollowingID"`
}

type FollowRequestStatus string

const (
	RequestPending  FollowRequestStatus = "pending"
	RequestAccepted FollowRequestStatus = "accepted"
	RequestRejected FollowRequestStatus = "rejected"
)

// FollowRequest is a pending proposal to create a Follow edge, required when
// the target account is private. The From* columns are a snapshot of the
// requester taken at request time so inboxes render without a join.
type FollowRequest struct {
	ID              uuid.UUID           `json:"id" gorm:"type:uuid;primary_key"`
	FromUserID      uuid.UUID           `json:"from_user_id" gorm:"type:uuid;not null;index:idx_from_to"`
	ToUserID        uuid.UUID           `json:"to_user_id" gorm:"type:uuid;not null;index:idx_from_to"`
	Status          FollowRequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	FromUsername    string              `json:"from_username"`
	FromDisplayName string              `json:"from_display_name"`
	FromAvatar      string              `json:"from_avatar"`
	FromIsVerified  bool                `json:"from_is_verified"`
	CreatedAt       time.Time           `json:"created_at"`
	ResolvedAt      *time.Time          `json:"resolved_at,omitempty"`
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (r *FollowRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (Follow) TableName() string {
	return "follows"
}

func (FollowRequest) TableName() string {
	return "follow_requests"
}
