package core

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/putto11262002/gymchat/pkg/roomsync"
)

var validate = validator.New()

// User is the sign up input of a user.
type User struct {
	Username    string        `json:"username" validate:"required,min=3,max=32"`
	Password    string        `json:"password" validate:"required,min=8"`
	DisplayName string        `json:"display_name" validate:"required,max=64"`
	AvatarRef   string        `json:"avatar_ref" validate:"omitempty,max=512"`
	Role        roomsync.Role `json:"-"`
}

func (u *User) Validate() error {
	return validate.Struct(u)
}

type UserWithoutSecrets struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	DisplayName string        `json:"display_name"`
	AvatarRef   string        `json:"avatar_ref"`
	Role        roomsync.Role `json:"role"`
}

// Profile is the public identity of the user shown next to their messages.
func (u UserWithoutSecrets) Profile() roomsync.AuthorProfile {
	return roomsync.AuthorProfile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarRef:   u.AvatarRef,
		Role:        u.Role,
	}
}

var (
	ErrConflictedUser = errors.New("user already exists")
)

type UserStore interface {
	// CreateUser stores a user and returns its id.
	// It returns ErrConflictedUser if the username is taken.
	CreateUser(ctx context.Context, user User) (string, error)

	// GetUserByUsername returns nil if the user is not found.
	GetUserByUsername(ctx context.Context, username string) (*UserWithoutSecrets, error)

	// GetUserByID returns nil if the user is not found.
	GetUserByID(ctx context.Context, id string) (*UserWithoutSecrets, error)

	// GetUsersByIDs returns the users that exist among ids, in no particular order.
	GetUsersByIDs(ctx context.Context, ids ...string) ([]UserWithoutSecrets, error)

	ComparePassword(ctx context.Context, username, password string) (bool, error)

	SetRole(ctx context.Context, id string, role roomsync.Role) error
}
