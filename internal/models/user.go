package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	Username       string         `json:"username" gorm:"uniqueIndex;not null"`
	Email          string         `json:"email" gorm:"uniqueIndex;not null"`
	Password       string         `json:"-" gorm:"not null"`
	DisplayName    string         `json:"display_name"`
	Avatar         string         `json:"avatar"`
	Bio            string         `json:"bio"`
	IsPrivate      bool           `json:"is_private" gorm:"default:false"`
	IsVerified     bool           `json:"is_verified" gorm:"default:false"`
	FollowersCount int64          `json:"followers_count" gorm:"default:0"`
	FollowingCount int64          `json:"following_count" gorm:"default:0"`
	PostsCount     int64          `json:"posts_count" gorm:"default:0"`
	IsActive       bool           `json:"is_active" gorm:"default:true"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FollowStats is the denormalized counter pair read off the user row.
type FollowStats struct {
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
}

func (User) TableName() string {
	return "users"
}
