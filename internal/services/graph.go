package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/social-graph/social-graph/internal/models"
	"github.com/social-graph/social-graph/internal/repository"
	"github.com/social-graph/social-graph/pkg/logger"
	"github.com/social-graph/social-graph/pkg/queue"
)

// GraphService is the follow graph manager. It coordinates the profile,
// edge and request stores so they never diverge, and fans every graph
// mutation out to the recipient's notification feed.
type GraphService struct {
	userRepo      *repository.UserRepository
	followRepo    *repository.FollowRepository
	requestRepo   *repository.FollowRequestRepository
	notifications *NotificationService
	producer      queue.Publisher
	logger        *logger.Logger
}

func NewGraphService(
	userRepo *repository.UserRepository,
	followRepo *repository.FollowRepository,
	requestRepo *repository.FollowRequestRepository,
	notifications *NotificationService,
	producer queue.Publisher,
	logger *logger.Logger,
) *GraphService {
	return &GraphService{
		userRepo:      userRepo,
		followRepo:    followRepo,
		requestRepo:   requestRepo,
		notifications: notifications,
		producer:      producer,
		logger:        logger,
	}
}

func parsePair(followerID, followingID string) (uuid.UUID, uuid.UUID, error) {
	follower, err := uuid.Parse(followerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: follower: %v", ErrInvalidUserID, err)
	}
	following, err := uuid.Parse(followingID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: followee: %v", ErrInvalidUserID, err)
	}
	return follower, following, nil
}

// Follow creates the edge follower -> followee on a public account. Private
// targets are never followed directly; callers get ErrPrivateAccount and must
// go through SendFollowRequest. Re-following an already followed account is a
// no-op.
func (s *GraphService) Follow(ctx context.Context, followerID, followingID string) error {
	followerUUID, followingUUID, err := parsePair(followerID, followingID)
	if err != nil {
		return err
	}
	if followerUUID == followingUUID {
		return ErrSelfFollow
	}

	follower, err := s.userRepo.GetByID(ctx, followerUUID)
	if err != nil {
		return fmt.Errorf("failed to get follower: %w", err)
	}
	if follower == nil {
		return fmt.Errorf("%w: follower", ErrUserNotFound)
	}

	followee, err := s.userRepo.GetByID(ctx, followingUUID)
	if err != nil {
		return fmt.Errorf("failed to get followee: %w", err)
	}
	if followee == nil {
		return fmt.Errorf("%w: followee", ErrUserNotFound)
	}

	if followee.IsPrivate {
		return ErrPrivateAccount
	}

	follow := &models.Follow{
		FollowerID:  followerUUID,
		FollowingID: followingUUID,
	}
	created, err := s.followRepo.CreateWithCounters(ctx, follow)
	if err != nil {
		return err
	}
	if !created {
		// Edge was already there; counters untouched.
		return nil
	}

	if _, err := s.notifications.Fanout(ctx, GraphEvent{
		Type:     models.NotificationFollow,
		FromUser: follower,
		ToUserID: followingUUID,
	}); err != nil {
		s.logger.WithError(err).Error("Failed to fan out follow notification")
	}

	s.publishFollowEvent(ctx, queue.EventFollowCreated, followerID, followingID)

	s.logger.WithFields(map[string]interface{}{
		"follower_id":  followerID,
		"following_id": followingID,
	}).Info("User followed successfully")

	return nil
}

// Unfollow removes the edge and decrements both counters, clamped at zero.
// No edge means nothing to do. No notification is emitted.
func (s *GraphService) Unfollow(ctx context.Context, followerID, followingID string) error {
	followerUUID, followingUUID, err := parsePair(followerID, followingID)
	if err != nil {
		return err
	}

	deleted, err := s.followRepo.DeleteWithCounters(ctx, followerUUID, followingUUID)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}

	s.publishFollowEvent(ctx, queue.EventFollowDeleted, followerID, followingID)

	s.logger.WithFields(map[string]interface{}{
		"follower_id":  followerID,
		"following_id": followingID,
	}).Info("User unfollowed successfully")

	return nil
}

// SendFollowRequest proposes a follow edge. Public targets resolve
// immediately: the edge and counters land and the request is recorded as
// accepted. Private targets get a pending request plus a follow_request
// notification carrying the requester snapshot. A pending duplicate comes
// back as-is; an existing edge surfaces ErrAlreadyFollowing.
func (s *GraphService) SendFollowRequest(ctx context.Context, fromUserID, toUserID string) (*models.FollowRequest, error) {
	fromUUID, toUUID, err := parsePair(fromUserID, toUserID)
	if err != nil {
		return nil, err
	}
	if fromUUID == toUUID {
		return nil, ErrSelfFollow
	}

	fromUser, err := s.userRepo.GetByID(ctx, fromUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get requester: %w", err)
	}
	if fromUser == nil {
		return nil, fmt.Errorf("%w: requester", ErrUserNotFound)
	}

	toUser, err := s.userRepo.GetByID(ctx, toUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	if toUser == nil {
		return nil, fmt.Errorf("%w: target", ErrUserNotFound)
	}

	following, err := s.followRepo.IsFollowing(ctx, fromUUID, toUUID)
	if err != nil {
		return nil, err
	}
	if following {
		return nil, ErrAlreadyFollowing
	}

	existing, err := s.requestRepo.GetPending(ctx, fromUUID, toUUID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	request := &models.FollowRequest{
		FromUserID:      fromUUID,
		ToUserID:        toUUID,
		Status:          models.RequestPending,
		FromUsername:    fromUser.Username,
		FromDisplayName: fromUser.DisplayName,
		FromAvatar:      fromUser.Avatar,
		FromIsVerified:  fromUser.IsVerified,
		CreatedAt:       time.Now(),
	}

	if !toUser.IsPrivate {
		// Requests to public accounts auto-resolve as an immediate follow.
		follow := &models.Follow{FollowerID: fromUUID, FollowingID: toUUID}
		if _, err := s.followRepo.CreateWithCounters(ctx, follow); err != nil {
			return nil, err
		}

		now := time.Now()
		request.Status = models.RequestAccepted
		request.ResolvedAt = &now
		if err := s.requestRepo.Create(ctx, request); err != nil {
			return nil, err
		}

		if _, err := s.notifications.Fanout(ctx, GraphEvent{
			Type:     models.NotificationFollow,
			FromUser: fromUser,
			ToUserID: toUUID,
		}); err != nil {
			s.logger.WithError(err).Error("Failed to fan out follow notification")
		}

		s.publishFollowEvent(ctx, queue.EventFollowCreated, fromUserID, toUserID)
		return request, nil
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, err
	}

	if _, err := s.notifications.Fanout(ctx, GraphEvent{
		Type:      models.NotificationFollowRequest,
		FromUser:  fromUser,
		ToUserID:  toUUID,
		RequestID: &request.ID,
	}); err != nil {
		s.logger.WithError(err).Error("Failed to fan out follow request notification")
	}

	s.publishRequestEvent(ctx, queue.EventFollowRequestCreated, request)

	s.logger.WithFields(map[string]interface{}{
		"request_id":   request.ID,
		"from_user_id": fromUserID,
		"to_user_id":   toUserID,
	}).Info("Follow request created")

	return request, nil
}

// AcceptFollowRequest flips the request to accepted, creates the edge and
// moves both counters atomically, then notifies the requester and stamps the
// original follow_request notification. Accepting an already resolved
// request is a silent no-op.
func (s *GraphService) AcceptFollowRequest(ctx context.Context, requestID string) error {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return fmt.Errorf("%w: invalid request ID: %v", ErrRequestNotFound, err)
	}

	request, accepted, err := s.requestRepo.Accept(ctx, id)
	if err != nil {
		return err
	}
	if request == nil {
		return ErrRequestNotFound
	}
	if !accepted {
		return nil
	}

	acceptor, err := s.userRepo.GetByID(ctx, request.ToUserID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load acceptor for notification")
	}
	if acceptor != nil {
		if _, err := s.notifications.Fanout(ctx, GraphEvent{
			Type:      models.NotificationFollowAccepted,
			FromUser:  acceptor,
			ToUserID:  request.FromUserID,
			RequestID: &request.ID,
		}); err != nil {
			s.logger.WithError(err).Error("Failed to fan out follow accepted notification")
		}
	}

	if err := s.notifications.ApplyRequestAction(ctx, request.ID, models.ActionAccepted); err != nil {
		s.logger.WithError(err).Error("Failed to stamp follow request notification")
	}

	s.publishRequestEvent(ctx, queue.EventFollowRequestAccepted, request)
	s.publishFollowEvent(ctx, queue.EventFollowCreated, request.FromUserID.String(), request.ToUserID.String())

	s.logger.WithField("request_id", requestID).Info("Follow request accepted")
	return nil
}

// RejectFollowRequest flips the request to rejected. No edge, no counter
// movement, no notification to the requester; only the original
// follow_request notification is stamped. Rejecting an already resolved
// request is a silent no-op.
func (s *GraphService) RejectFollowRequest(ctx context.Context, requestID string) error {
	id, err := uuid.Parse(requestID)
	if err != nil {
		return fmt.Errorf("%w: invalid request ID: %v", ErrRequestNotFound, err)
	}

	request, rejected, err := s.requestRepo.Reject(ctx, id)
	if err != nil {
		return err
	}
	if request == nil {
		return ErrRequestNotFound
	}
	if !rejected {
		return nil
	}

	if err := s.notifications.ApplyRequestAction(ctx, request.ID, models.ActionRejected); err != nil {
		s.logger.WithError(err).Error("Failed to stamp follow request notification")
	}

	s.publishRequestEvent(ctx, queue.EventFollowRequestRejected, request)

	s.logger.WithField("request_id", requestID).Info("Follow request rejected")
	return nil
}

func (s *GraphService) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	followerUUID, followingUUID, err := parsePair(followerID, followingID)
	if err != nil {
		return false, err
	}
	return s.followRepo.IsFollowing(ctx, followerUUID, followingUUID)
}

func (s *GraphService) GetFollowers(ctx context.Context, userID string, offset, limit int) ([]*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	return s.followRepo.GetFollowers(ctx, id, offset, limit)
}

func (s *GraphService) GetFollowing(ctx context.Context, userID string, offset, limit int) ([]*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	return s.followRepo.GetFollowing(ctx, id, offset, limit)
}

// GetFollowStats reads the denormalized counters off the user row. They can
// trail the edge count briefly after a failed mutation; the invariant is
// restored by the next successful edge write.
func (s *GraphService) GetFollowStats(ctx context.Context, userID string) (*models.FollowStats, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}

	var stats *models.FollowStats
	err = withReadRetry(ctx, func() error {
		var innerErr error
		stats, innerErr = s.userRepo.GetFollowStats(ctx, id)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, ErrUserNotFound
	}
	return stats, nil
}

func (s *GraphService) GetFollowRequest(ctx context.Context, fromUserID, toUserID string) (*models.FollowRequest, error) {
	fromUUID, toUUID, err := parsePair(fromUserID, toUserID)
	if err != nil {
		return nil, err
	}
	return s.requestRepo.GetPending(ctx, fromUUID, toUUID)
}

func (s *GraphService) GetFollowRequests(ctx context.Context, userID string, offset, limit int) ([]*models.FollowRequest, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	return s.requestRepo.ListPendingFor(ctx, id, offset, limit)
}

// CanSeeUserStories gates story visibility: owners always see their own,
// public accounts are visible to everyone, private accounts only to accepted
// followers.
func (s *GraphService) CanSeeUserStories(ctx context.Context, viewerID, ownerID string) (bool, error) {
	viewerUUID, ownerUUID, err := parsePair(viewerID, ownerID)
	if err != nil {
		return false, err
	}
	if viewerUUID == ownerUUID {
		return true, nil
	}

	owner, err := s.userRepo.GetByID(ctx, ownerUUID)
	if err != nil {
		return false, fmt.Errorf("failed to get story owner: %w", err)
	}
	if owner == nil {
		return false, ErrUserNotFound
	}
	if !owner.IsPrivate {
		return true, nil
	}

	return s.followRepo.IsFollowing(ctx, viewerUUID, ownerUUID)
}

func (s *GraphService) publishFollowEvent(ctx context.Context, eventType queue.EventType, followerID, followingID string) {
	if s.producer == nil {
		return
	}
	event := queue.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data: queue.FollowEventData{
			FollowerID:  followerID,
			FollowingID: followingID,
			CreatedAt:   time.Now().Format(time.RFC3339),
		},
	}
	if err := s.producer.Publish(ctx, followerID, event); err != nil {
		s.logger.WithError(err).Error("Failed to publish follow event")
	}
}

func (s *GraphService) publishRequestEvent(ctx context.Context, eventType queue.EventType, request *models.FollowRequest) {
	if s.producer == nil {
		return
	}
	event := queue.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data: queue.FollowRequestEventData{
			RequestID:  request.ID.String(),
			FromUserID: request.FromUserID.String(),
			ToUserID:   request.ToUserID.String(),
			Status:     string(request.Status),
		},
	}
	if err := s.producer.Publish(ctx, request.FromUserID.String(), event); err != nil {
		s.logger.WithError(err).Error("Failed to publish follow request event")
	}
}
