package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/social-graph/social-graph/internal/models"
	"gorm.io/gorm"
)

type FollowRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) *FollowRepository {
	return &FollowRepository{db: db}
}

// adjustCounter applies a clamped delta to a single counter column. The CASE
// keeps the stored value non-negative even when a prior mutation drifted.
func adjustCounter(tx *gorm.DB, userID uuid.UUID, column string, delta int64) error {
	expr := fmt.Sprintf("CASE WHEN %s + ? < 0 THEN 0 ELSE %s + ? END", column, column)
	if err := tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn(column, gorm.Expr(expr, delta, delta)).Error; err != nil {
		return fmt.Errorf("failed to adjust %s: %w", column, err)
	}
	return nil
}

// applyEdgeCounters moves both denormalized counters together with an edge
// mutation. Must run inside the same transaction as the edge write.
func applyEdgeCounters(tx *gorm.DB, followerID, followingID uuid.UUID, delta int64) error {
	if err := adjustCounter(tx, followingID, "followers_count", delta); err != nil {
		return err
	}
	return adjustCounter(tx, followerID, "following_count", delta)
}

// CreateWithCounters inserts the edge and increments both counters in one
// transaction. Returns false without touching anything when the edge already
// exists.
func (r *FollowRepository) CreateWithCounters(ctx context.Context, follow *models.Follow) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", follow.FollowerID, follow.FollowingID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check existing follow: %w", err)
		}
		if count > 0 {
			return nil
		}

		if err := tx.Create(follow).Error; err != nil {
			return fmt.Errorf("failed to create follow: %w", err)
		}
		if err := applyEdgeCounters(tx, follow.FollowerID, follow.FollowingID, 1); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// DeleteWithCounters removes the edge and decrements both counters in one
// transaction. Returns false without touching counters when no edge exists.
func (r *FollowRepository) DeleteWithCounters(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).
			Delete(&models.Follow{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete follow: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := applyEdgeCounters(tx, followerID, followingID, -1); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (r *FollowRepository) Get(ctx context.Context, followerID, followingID uuid.UUID) (*models.Follow, error) {
	var follow models.Follow
	if err := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		First(&follow).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get follow: %w", err)
	}
	return &follow, nil
}

func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check follow status: %w", err)
	}
	return count > 0, nil
}

func (r *FollowRepository) GetFollowers(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error) {
	var users []*models.User
	if err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ?", userID).
		Order("follows.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return users, nil
}

func (r *FollowRepository) GetFollowing(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error) {
	var users []*models.User
	if err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return users, nil
}

func (r *FollowRepository) CountFollowers(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return count, nil
}

func (r *FollowRepository) CountFollowing(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count following: %w", err)
	}
	return count, nil
}
