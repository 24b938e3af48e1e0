package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/social-graph/social-graph/internal/models"
	"github.com/social-graph/social-graph/internal/repository"
	"github.com/social-graph/social-graph/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakePublisher struct {
	events []interface{}
}

func (p *fakePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.events = append(p.events, value)
	return nil
}

type graphFixture struct {
	db        *gorm.DB
	graph     *GraphService
	notifs    *NotificationService
	notifRepo *repository.NotificationRepository
	follows   *repository.FollowRepository
	users     *repository.UserRepository
	publisher *fakePublisher
}

func newGraphFixture(t *testing.T) *graphFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.FollowRequest{},
		&models.Notification{},
	))

	log := logger.NewLoggerWithLevel("error")
	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	requestRepo := repository.NewFollowRequestRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	publisher := &fakePublisher{}
	notifs := NewNotificationService(notifRepo, nil, publisher, 0, log)
	graph := NewGraphService(userRepo, followRepo, requestRepo, notifs, publisher, log)

	return &graphFixture{
		db:        db,
		graph:     graph,
		notifs:    notifs,
		notifRepo: notifRepo,
		follows:   followRepo,
		users:     userRepo,
		publisher: publisher,
	}
}

func (f *graphFixture) createUser(t *testing.T, username string, private bool) *models.User {
	t.Helper()
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "secret",
		IsPrivate: private,
		IsActive:  true,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *graphFixture) reload(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	user, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func (f *graphFixture) notificationsFor(t *testing.T, id uuid.UUID) []*models.Notification {
	t.Helper()
	notifications, _, err := f.notifRepo.ListByRecipient(context.Background(), id, 0, 100)
	require.NoError(t, err)
	return notifications
}

func TestFollowPublicTarget(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))

	following, err := f.graph.IsFollowing(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.True(t, following)

	assert.Equal(t, int64(1), f.reload(t, alice.ID).FollowersCount)
	assert.Equal(t, int64(1), f.reload(t, bob.ID).FollowingCount)

	notifications := f.notificationsFor(t, alice.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationFollow, notifications[0].Type)
	assert.Equal(t, bob.ID, notifications[0].FromUserID)
	assert.False(t, notifications[0].IsRead)
}

func TestFollowIsIdempotent(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))
	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))

	count, err := f.follows.CountFollowers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), f.reload(t, alice.ID).FollowersCount)
	assert.Equal(t, int64(1), f.reload(t, bob.ID).FollowingCount)
}

func TestFollowSelfRejected(t *testing.T) {
	f := newGraphFixture(t)
	alice := f.createUser(t, "alice", false)

	err := f.graph.Follow(context.Background(), alice.ID.String(), alice.ID.String())
	assert.ErrorIs(t, err, ErrSelfFollow)

	count, err := f.follows.CountFollowers(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFollowPrivateTargetRequiresRequest(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", true)
	bob := f.createUser(t, "bob", false)

	err := f.graph.Follow(ctx, bob.ID.String(), alice.ID.String())
	assert.ErrorIs(t, err, ErrPrivateAccount)

	count, err := f.follows.CountFollowers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, f.reload(t, alice.ID).FollowersCount)
}

func TestFollowUnknownUser(t *testing.T) {
	f := newGraphFixture(t)
	bob := f.createUser(t, "bob", false)

	err := f.graph.Follow(context.Background(), bob.ID.String(), uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSendFollowRequestPrivateTarget(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", true)
	bob := f.createUser(t, "bob", false)

	request, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, request.Status)
	assert.Equal(t, "bob", request.FromUsername)

	following, err := f.graph.IsFollowing(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.False(t, following)

	notifications := f.notificationsFor(t, alice.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationFollowRequest, notifications[0].Type)
	require.NotNil(t, notifications[0].FollowRequestID)
	assert.Equal(t, request.ID, *notifications[0].FollowRequestID)
	assert.Nil(t, notifications[0].ActionTaken)
}

func TestSendFollowRequestDuplicateReturnsExisting(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", true)
	bob := f.createUser(t, "bob", false)

	first, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)

	second, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	requests, err := f.graph.GetFollowRequests(ctx, alice.ID.String(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestSendFollowRequestPublicTargetAutoResolves(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	request, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, request.Status)
	require.NotNil(t, request.ResolvedAt)

	following, err := f.graph.IsFollowing(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.True(t, following)
	assert.Equal(t, int64(1), f.reload(t, alice.ID).FollowersCount)

	notifications := f.notificationsFor(t, alice.ID)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationFollow, notifications[0].Type)
}

func TestSendFollowRequestAlreadyFollowing(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))

	_, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	assert.ErrorIs(t, err, ErrAlreadyFollowing)
}

func TestAcceptFollowRequest(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", true)
	bob := f.createUser(t, "bob", false)

	request, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)

	require.NoError(t, f.graph.AcceptFollowRequest(ctx, request.ID.String()))

	following, err := f.graph.IsFollowing(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.True(t, following)
	assert.Equal(t, int64(1), f.reload(t, alice.ID).FollowersCount)
	assert.Equal(t, int64(1), f.reload(t, bob.ID).FollowingCount)

	updated, err := f.graph.GetFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.Nil(t, updated, "no pending request should remain")

	// Original follow_request notification is stamped accepted.
	aliceNotifs := f.notificationsFor(t, alice.ID)
	require.Len(t, aliceNotifs, 1)
	require.NotNil(t, aliceNotifs[0].ActionTaken)
	assert.Equal(t, models.ActionAccepted, *aliceNotifs[0].ActionTaken)

	// Requester hears back.
	bobNotifs := f.notificationsFor(t, bob.ID)
	require.Len(t, bobNotifs, 1)
	assert.Equal(t, models.NotificationFollowAccepted, bobNotifs[0].Type)
}

func TestAcceptFollowRequestIsTerminal(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", true)
	bob := f.createUser(t, "bob", false)

	request, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)

	require.NoError(t, f.graph.AcceptFollowRequest(ctx, request.ID.String()))
	require.NoError(t, f.graph.AcceptFollowRequest(ctx, request.ID.String()))

	count, err := f.follows.CountFollowers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "second accept must not create a second edge")
	assert.Equal(t, int64(1), f.reload(t, alice.ID).FollowersCount)
}

func TestAcceptMissingRequest(t *testing.T) {
	f := newGraphFixture(t)

	err := f.graph.AcceptFollowRequest(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRejectFollowRequest(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", true)
	bob := f.createUser(t, "bob", false)

	request, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)

	require.NoError(t, f.graph.RejectFollowRequest(ctx, request.ID.String()))

	following, err := f.graph.IsFollowing(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.False(t, following)
	assert.Zero(t, f.reload(t, alice.ID).FollowersCount)
	assert.Zero(t, f.reload(t, bob.ID).FollowingCount)

	aliceNotifs := f.notificationsFor(t, alice.ID)
	require.Len(t, aliceNotifs, 1)
	require.NotNil(t, aliceNotifs[0].ActionTaken)
	assert.Equal(t, models.ActionRejected, *aliceNotifs[0].ActionTaken)

	// No notification goes back to the requester on reject.
	assert.Empty(t, f.notificationsFor(t, bob.ID))

	// Double reject is a silent no-op.
	require.NoError(t, f.graph.RejectFollowRequest(ctx, request.ID.String()))
}

func TestRejectThenAcceptDoesNothing(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", true)
	bob := f.createUser(t, "bob", false)

	request, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)

	require.NoError(t, f.graph.RejectFollowRequest(ctx, request.ID.String()))
	require.NoError(t, f.graph.AcceptFollowRequest(ctx, request.ID.String()))

	following, err := f.graph.IsFollowing(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.False(t, following, "a resolved request never transitions again")
}

func TestUnfollow(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))
	require.NoError(t, f.graph.Unfollow(ctx, bob.ID.String(), alice.ID.String()))

	following, err := f.graph.IsFollowing(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.False(t, following)
	assert.Zero(t, f.reload(t, alice.ID).FollowersCount)
	assert.Zero(t, f.reload(t, bob.ID).FollowingCount)
}

func TestUnfollowWithoutEdgeIsNoop(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	require.NoError(t, f.graph.Unfollow(ctx, bob.ID.String(), alice.ID.String()))
	assert.Zero(t, f.reload(t, alice.ID).FollowersCount)
}

func TestUnfollowClampsCountersAtZero(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))

	// Simulate counter drift from a prior partial failure.
	require.NoError(t, f.db.Model(&models.User{}).
		Where("id = ?", alice.ID).
		UpdateColumn("followers_count", 0).Error)

	require.NoError(t, f.graph.Unfollow(ctx, bob.ID.String(), alice.ID.String()))

	assert.Zero(t, f.reload(t, alice.ID).FollowersCount, "counter never goes negative")
	assert.Zero(t, f.reload(t, bob.ID).FollowingCount)
}

func TestGetFollowStatsMatchesEdgesAfterSequence(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)
	carol := f.createUser(t, "carol", false)

	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))
	require.NoError(t, f.graph.Follow(ctx, carol.ID.String(), alice.ID.String()))
	require.NoError(t, f.graph.Follow(ctx, alice.ID.String(), bob.ID.String()))
	require.NoError(t, f.graph.Unfollow(ctx, carol.ID.String(), alice.ID.String()))

	stats, err := f.graph.GetFollowStats(ctx, alice.ID.String())
	require.NoError(t, err)

	followers, err := f.graph.GetFollowers(ctx, alice.ID.String(), 0, 100)
	require.NoError(t, err)
	following, err := f.graph.GetFollowing(ctx, alice.ID.String(), 0, 100)
	require.NoError(t, err)

	assert.Equal(t, int64(len(followers)), stats.FollowersCount)
	assert.Equal(t, int64(len(following)), stats.FollowingCount)
	assert.Equal(t, int64(1), stats.FollowersCount)
	assert.Equal(t, int64(1), stats.FollowingCount)
}

func TestGetFollowStatsUnknownUser(t *testing.T) {
	f := newGraphFixture(t)

	_, err := f.graph.GetFollowStats(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCanSeeUserStories(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", true)
	bob := f.createUser(t, "bob", false)
	carol := f.createUser(t, "carol", false)

	// Private owner, no relationship.
	visible, err := f.graph.CanSeeUserStories(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.False(t, visible)

	// Owners always see their own stories.
	visible, err = f.graph.CanSeeUserStories(ctx, alice.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.True(t, visible)

	// Public owners are visible to anyone.
	visible, err = f.graph.CanSeeUserStories(ctx, bob.ID.String(), carol.ID.String())
	require.NoError(t, err)
	assert.True(t, visible)

	// Acceptance opens the gate.
	request, err := f.graph.SendFollowRequest(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	require.NoError(t, f.graph.AcceptFollowRequest(ctx, request.ID.String()))

	visible, err = f.graph.CanSeeUserStories(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestFollowersOrderedNewestFirst(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)
	carol := f.createUser(t, "carol", false)

	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))
	require.NoError(t, f.graph.Follow(ctx, carol.ID.String(), alice.ID.String()))

	followers, err := f.graph.GetFollowers(ctx, alice.ID.String(), 0, 10)
	require.NoError(t, err)
	require.Len(t, followers, 2)
}

func TestGraphEventsPublished(t *testing.T) {
	f := newGraphFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))
	require.NoError(t, f.graph.Unfollow(ctx, bob.ID.String(), alice.ID.String()))

	// follow_created + notification_created + follow_deleted
	assert.Len(t, f.publisher.events, 3)
}
