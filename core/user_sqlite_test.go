package core

import (
	"testing"

	"github.com/putto11262002/gymchat/pkg/roomsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type UserFixture struct {
	*BaseFixture
	userStore *SQLiteUserStore
}

func NewUserFixture(t *testing.T) *UserFixture {
	base := NewBaseFixture(t)
	return &UserFixture{
		BaseFixture: base,
		userStore:   NewSQLiteUserStore(base.db.DB),
	}
}

func TestCreateUser(t *testing.T) {
	t.Run("create user successfully", func(t *testing.T) {
		f := NewUserFixture(t)
		defer f.tearDown()

		id, err := f.userStore.CreateUser(f.ctx, owner)
		require.Nil(t, err)
		require.NotEmpty(t, id)

		user, err := f.userStore.GetUserByID(f.ctx, id)
		require.Nil(t, err)
		require.NotNil(t, user)
		assert.Equal(t, owner.Username, user.Username)
		assert.Equal(t, owner.DisplayName, user.DisplayName)
		assert.Equal(t, roomsync.RoleVenueOwner, user.Role)
	})

	t.Run("username taken", func(t *testing.T) {
		f := NewUserFixture(t)
		defer f.tearDown()
		seedUsers(f.ctx, t, f.userStore, member1)

		id, err := f.userStore.CreateUser(f.ctx, member1)
		assert.Empty(t, id)
		assert.ErrorIs(t, err, ErrConflictedUser)
	})

	t.Run("password is hashed", func(t *testing.T) {
		f := NewUserFixture(t)
		defer f.tearDown()
		seedUsers(f.ctx, t, f.userStore, member1)

		var stored string
		row := f.db.QueryRowContext(f.ctx, "SELECT password FROM users WHERE username = ?", member1.Username)
		require.Nil(t, row.Scan(&stored))
		assert.NotEqual(t, member1.Password, stored)
	})
}

func TestGetUser(t *testing.T) {
	f := NewUserFixture(t)
	defer f.tearDown()
	ids := seedUsers(f.ctx, t, f.userStore, member1, member2)

	user, err := f.userStore.GetUserByUsername(f.ctx, member2.Username)
	require.Nil(t, err)
	require.NotNil(t, user)
	assert.Equal(t, ids[1], user.ID)
	assert.Equal(t, roomsync.RoleUser, user.Role)

	user, err = f.userStore.GetUserByUsername(f.ctx, "random")
	assert.Nil(t, err)
	assert.Nil(t, user)

	user, err = f.userStore.GetUserByID(f.ctx, "random")
	assert.Nil(t, err)
	assert.Nil(t, user)
}

func TestGetUsersByIDs(t *testing.T) {
	f := NewUserFixture(t)
	defer f.tearDown()
	ids := seedUsers(f.ctx, t, f.userStore, member1, member2, mod)

	users, err := f.userStore.GetUsersByIDs(f.ctx, ids[0], ids[2], "random")
	require.Nil(t, err)
	require.Len(t, users, 2)

	byID := map[string]UserWithoutSecrets{}
	for _, u := range users {
		byID[u.ID] = u
	}
	assert.Equal(t, member1.DisplayName, byID[ids[0]].DisplayName)
	assert.Equal(t, roomsync.RoleModerator, byID[ids[2]].Profile().Role)

	users, err = f.userStore.GetUsersByIDs(f.ctx)
	assert.Nil(t, err)
	assert.Empty(t, users)
}

func TestComparePassword(t *testing.T) {
	f := NewUserFixture(t)
	defer f.tearDown()
	seedUsers(f.ctx, t, f.userStore, member1)

	ok, err := f.userStore.ComparePassword(f.ctx, member1.Username, member1.Password)
	require.Nil(t, err)
	assert.True(t, ok)

	ok, err = f.userStore.ComparePassword(f.ctx, member1.Username, "wrong password")
	require.Nil(t, err)
	assert.False(t, ok)

	ok, err = f.userStore.ComparePassword(f.ctx, "random", member1.Password)
	require.Nil(t, err)
	assert.False(t, ok)
}

func TestSetRole(t *testing.T) {
	f := NewUserFixture(t)
	defer f.tearDown()
	ids := seedUsers(f.ctx, t, f.userStore, member1)

	require.Nil(t, f.userStore.SetRole(f.ctx, ids[0], roomsync.RoleAdmin))
	user, err := f.userStore.GetUserByID(f.ctx, ids[0])
	require.Nil(t, err)
	assert.Equal(t, roomsync.RoleAdmin, user.Role)

	assert.ErrorIs(t, f.userStore.SetRole(f.ctx, "random", roomsync.RoleAdmin), ErrInvalidUser)
}

func TestUserValidate(t *testing.T) {
	assert.Nil(t, member1.Validate())

	invalid := User{Username: "ab", Password: "short", DisplayName: ""}
	assert.NotNil(t, invalid.Validate())
}
