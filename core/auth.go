package core

import (
	"context"
	"errors"
	"time"

	"github.com/putto11262002/gymchat/pkg/roomsync"
)

type Session struct {
	UserID    string        `json:"user_id"`
	Username  string        `json:"username"`
	Role      roomsync.Role `json:"role"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Actor is the identity the room engine authorizes with.
func (s Session) Actor() roomsync.Actor {
	return roomsync.Actor{ID: s.UserID, Role: s.Role}
}

var (
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
)

type AuthStore interface {
	NewSession(ctx context.Context, username, password string) (sesion *Session, err error)

	DestroySession(ctx context.Context, session Session) error

	// Session returns ErrUnauthenticated when the token is invalid, expired or revoked.
	Session(ctx context.Context, token string) (payload *Session, err error)
}
