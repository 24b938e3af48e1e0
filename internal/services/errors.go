package services

import "errors"

// Sentinel errors surfaced by the graph and notification services. Handlers
// match them with errors.Is to pick response codes.
var (
	ErrSelfFollow = errors.New("cannot follow yourself")
	// ErrAlreadyFollowing is returned by SendFollowRequest when an edge
	// already exists for the pair. Handlers report it as a committed
	// "following" state rather than a failure.
	ErrAlreadyFollowing     = errors.New("already following")
	ErrUserNotFound         = errors.New("user not found")
	ErrPrivateAccount       = errors.New("account is private, a follow request is required")
	ErrRequestNotFound      = errors.New("follow request not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidUserID        = errors.New("invalid user ID")
)
