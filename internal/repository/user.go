package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/social-graph/social-graph/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// GetFollowStats reads the denormalized counter pair. Callers that need the
// exact edge cardinality must count the follows table instead.
func (r *UserRepository) GetFollowStats(ctx context.Context, userID uuid.UUID) (*models.FollowStats, error) {
	var stats models.FollowStats
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("followers_count", "following_count").
		Where("id = ?", userID).
		First(&stats).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get follow stats: %w", err)
	}
	return &stats, nil
}

// DeleteCascade removes a user together with their edges, requests and
// notifications in one transaction. Counterpart counters move with the
// deleted edges so the edge/counter invariant survives account deletion.
func (r *UserRepository) DeleteCascade(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Everyone this user followed loses a follower.
		if err := tx.Model(&models.User{}).
			Where("id IN (?)", tx.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", userID)).
			UpdateColumn("followers_count", gorm.Expr("CASE WHEN followers_count - 1 < 0 THEN 0 ELSE followers_count - 1 END")).Error; err != nil {
			return fmt.Errorf("failed to adjust followers counts: %w", err)
		}
		// Everyone following this user loses a followee.
		if err := tx.Model(&models.User{}).
			Where("id IN (?)", tx.Model(&models.Follow{}).Select("follower_id").Where("following_id = ?", userID)).
			UpdateColumn("following_count", gorm.Expr("CASE WHEN following_count - 1 < 0 THEN 0 ELSE following_count - 1 END")).Error; err != nil {
			return fmt.Errorf("failed to adjust following counts: %w", err)
		}

		if err := tx.Where("follower_id = ? OR following_id = ?", userID, userID).
			Delete(&models.Follow{}).Error; err != nil {
			return fmt.Errorf("failed to delete follows: %w", err)
		}
		if err := tx.Where("from_user_id = ? OR to_user_id = ?", userID, userID).
			Delete(&models.FollowRequest{}).Error; err != nil {
			return fmt.Errorf("failed to delete follow requests: %w", err)
		}
		if err := tx.Where("from_user_id = ? OR to_user_id = ?", userID, userID).
			Delete(&models.Notification{}).Error; err != nil {
			return fmt.Errorf("failed to delete notifications: %w", err)
		}

		if err := tx.Delete(&models.User{}, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) Search(ctx context.Context, query string, offset, limit int) ([]*models.User, error) {
	var users []*models.User
	db := r.db.WithContext(ctx).Where("is_active = ?", true)

	if query != "" {
		db = db.Where("username LIKE ? OR display_name LIKE ?", "%"+query+"%", "%"+query+"%")
	}

	if err := db.Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}
