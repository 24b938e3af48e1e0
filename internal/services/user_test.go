package services

import (
	"context"
	"testing"

	"github.com/social-graph/social-graph/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newGraphFixtureLogger() *logger.Logger {
	return logger.NewLoggerWithLevel("error")
}

func TestRegisterAndLogin(t *testing.T) {
	f := newGraphFixture(t)
	svc := NewUserService(f.users, newGraphFixtureLogger())
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "hunter22",
		IsPrivate: true,
	})
	require.NoError(t, err)
	assert.True(t, user.IsPrivate)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("hunter22")))

	loggedIn, err := svc.Login(ctx, &LoginRequest{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	_, err = svc.Login(ctx, &LoginRequest{Username: "alice", Password: "wrong"})
	assert.Error(t, err)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newGraphFixture(t)
	svc := NewUserService(f.users, newGraphFixtureLogger())
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter22",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "hunter22",
	})
	assert.Error(t, err)
}

func TestUpdateTogglesPrivacy(t *testing.T) {
	f := newGraphFixture(t)
	svc := NewUserService(f.users, newGraphFixtureLogger())
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)

	private := true
	updated, err := svc.Update(ctx, alice.ID.String(), &UpdateUserRequest{IsPrivate: &private})
	require.NoError(t, err)
	assert.True(t, updated.IsPrivate)
}

func TestDeleteAccountCascades(t *testing.T) {
	f := newGraphFixture(t)
	svc := NewUserService(f.users, newGraphFixtureLogger())
	ctx := context.Background()
	alice := f.createUser(t, "alice", false)
	bob := f.createUser(t, "bob", false)

	// alice follows bob, bob follows alice.
	require.NoError(t, f.graph.Follow(ctx, alice.ID.String(), bob.ID.String()))
	require.NoError(t, f.graph.Follow(ctx, bob.ID.String(), alice.ID.String()))

	require.NoError(t, svc.DeleteAccount(ctx, alice.ID.String()))

	_, err := svc.GetByID(ctx, alice.ID.String())
	assert.ErrorIs(t, err, ErrUserNotFound)

	// bob loses the follower edge and the counter it backed.
	reloaded := f.reload(t, bob.ID)
	assert.Zero(t, reloaded.FollowersCount)
	assert.Zero(t, reloaded.FollowingCount)

	following, err := f.graph.IsFollowing(ctx, bob.ID.String(), alice.ID.String())
	require.NoError(t, err)
	assert.False(t, following)
}

func TestDeleteUnknownAccount(t *testing.T) {
	f := newGraphFixture(t)
	svc := NewUserService(f.users, newGraphFixtureLogger())

	err := svc.DeleteAccount(context.Background(), "00000000-0000-0000-0000-000000000001")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
