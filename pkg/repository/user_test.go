package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raktar-project/raktar/pkg/types"
)

// TestUserCreation tests dense id allocation starting at one
func TestUserCreation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	alice, err := repo.UpdateOrCreateUser(ctx, types.UserData{Login: "alice", GivenName: "Alice", FamilyName: "A"})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), alice.ID)

	bob, err := repo.UpdateOrCreateUser(ctx, types.UserData{Login: "bob", GivenName: "Bob", FamilyName: "B"})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), bob.ID)

	// Both lookup paths resolve the same record.
	byLogin, err := repo.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byLogin)
	byID, err := repo.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, *byLogin, *byID)
}

// TestUserUpsertIdempotent tests that re-syncing an unchanged profile
// keeps the id and writes nothing new
func TestUserUpsertIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	data := types.UserData{Login: "alice", GivenName: "Alice", FamilyName: "A"}

	first, err := repo.UpdateOrCreateUser(ctx, data)
	require.NoError(t, err)
	second, err := repo.UpdateOrCreateUser(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	users, err := repo.GetUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

// TestUserProfileDrift tests that a changed identity-provider profile
// overwrites the stored one while keeping the id
func TestUserProfileDrift(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.UpdateOrCreateUser(ctx, types.UserData{Login: "alice", GivenName: "Alice", FamilyName: "A"})
	require.NoError(t, err)

	updated, err := repo.UpdateOrCreateUser(ctx, types.UserData{Login: "alice", GivenName: "Alicia", FamilyName: "A"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, "Alicia", updated.GivenName)

	byID, err := repo.GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Alicia", byID.GivenName)
}

// TestGetUsers tests listing in id order
func TestGetUsers(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, login := range []string{"carol", "alice", "bob"} {
		_, err := repo.UpdateOrCreateUser(ctx, types.UserData{Login: login})
		require.NoError(t, err)
	}

	users, err := repo.GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{users[0].ID, users[1].ID, users[2].ID})
	assert.Equal(t, "carol", users[0].Login)
}

// TestGetMissingUser tests the nil contract for absent users
func TestGetMissingUser(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	user, err := repo.GetUserByLogin(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = repo.GetUserByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, user)
}
