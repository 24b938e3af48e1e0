package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/social-graph/social-graph/internal/models"
	"gorm.io/gorm"
)

type FollowRequestRepository struct {
	db *gorm.DB
}

func NewFollowRequestRepository(db *gorm.DB) *FollowRequestRepository {
	return &FollowRequestRepository{db: db}
}

func (r *FollowRequestRepository) Create(ctx context.Context, request *models.FollowRequest) error {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return fmt.Errorf("failed to create follow request: %w", err)
	}
	return nil
}

func (r *FollowRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FollowRequest, error) {
	var request models.FollowRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get follow request: %w", err)
	}
	return &request, nil
}

// GetPending returns the pending request for the ordered pair, if any. At
// most one pending request per pair exists at a time.
func (r *FollowRequestRepository) GetPending(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FollowRequest, error) {
	var request models.FollowRequest
	if err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", fromUserID, toUserID, models.RequestPending).
		First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending follow request: %w", err)
	}
	return &request, nil
}

// ListPendingFor returns the pending requests addressed to a user, newest
// first.
func (r *FollowRequestRepository) ListPendingFor(ctx context.Context, toUserID uuid.UUID, offset, limit int) ([]*models.FollowRequest, error) {
	var requests []*models.FollowRequest
	if err := r.db.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", toUserID, models.RequestPending).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending follow requests: %w", err)
	}
	return requests, nil
}

// Accept flips a pending request to accepted, creates the follow edge and
// moves both counters, all in one transaction. Returns the request and
// whether this call performed the transition; an already resolved request
// comes back unchanged with false.
func (r *FollowRequestRepository) Accept(ctx context.Context, id uuid.UUID) (*models.FollowRequest, bool, error) {
	var request models.FollowRequest
	accepted := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&request, "id = ?", id).Error; err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.FollowRequest{}).
			Where("id = ? AND status = ?", id, models.RequestPending).
			Updates(map[string]interface{}{"status": models.RequestAccepted, "resolved_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to accept follow request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race or already resolved; leave everything alone.
			return nil
		}
		request.Status = models.RequestAccepted
		request.ResolvedAt = &now

		var count int64
		if err := tx.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", request.FromUserID, request.ToUserID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check existing follow: %w", err)
		}
		if count > 0 {
			accepted = true
			return nil
		}

		follow := &models.Follow{FollowerID: request.FromUserID, FollowingID: request.ToUserID}
		if err := tx.Create(follow).Error; err != nil {
			return fmt.Errorf("failed to create follow: %w", err)
		}
		if err := applyEdgeCounters(tx, request.FromUserID, request.ToUserID, 1); err != nil {
			return err
		}

		accepted = true
		return nil
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &request, accepted, nil
}

// Reject flips a pending request to rejected. No edge, no counters. Returns
// whether this call performed the transition.
func (r *FollowRequestRepository) Reject(ctx context.Context, id uuid.UUID) (*models.FollowRequest, bool, error) {
	var request models.FollowRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get follow request: %w", err)
	}

	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.FollowRequest{}).
		Where("id = ? AND status = ?", id, models.RequestPending).
		Updates(map[string]interface{}{"status": models.RequestRejected, "resolved_at": now})
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to reject follow request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &request, false, nil
	}

	request.Status = models.RequestRejected
	request.ResolvedAt = &now
	return &request, true, nil
}

func (r *FollowRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.FollowRequest{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete follow request: %w", err)
	}
	return nil
}
