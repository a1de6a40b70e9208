package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/putto11262002/gymchat/pkg/roomsync"
)

type User struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	DisplayName string        `json:"display_name"`
	AvatarRef   string        `json:"avatar_ref"`
	Role        roomsync.Role `json:"role"`
}

type session struct {
	UserID    string        `json:"user_id"`
	Role      roomsync.Role `json:"role"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// RoomPreview is a joined room as listed by Rooms.
type RoomPreview struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	LastMessageBody string     `json:"last_message_body"`
	LastMessageAt   *time.Time `json:"last_message_at"`
	LastReadAt      *time.Time `json:"last_read_at"`
	Unread          bool       `json:"unread"`
}

func (c *Client) SignUp(ctx context.Context, username, password, displayName string) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/users", nil, map[string]string{
		"username":     username,
		"password":     password,
		"display_name": displayName,
	}, &res)
	return res.ID, err
}

func (c *Client) SignIn(ctx context.Context, username, password string) error {
	var s session
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", nil, map[string]string{
		"username": username,
		"password": password,
	}, &s)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = s.Token
	c.actor = roomsync.Actor{ID: s.UserID, Role: s.Role}
	c.mu.Unlock()
	return nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = ""
	c.actor = roomsync.Actor{}
	c.mu.Unlock()
	return nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil, &u)
	return u, err
}

// CurrentActor returns the signed in user. A client created with WithToken
// looks the user up on first use.
func (c *Client) CurrentActor(ctx context.Context) (roomsync.Actor, error) {
	c.mu.RLock()
	token, actor := c.token, c.actor
	c.mu.RUnlock()

	if token == "" {
		return roomsync.Actor{}, roomsync.ErrUnauthenticated
	}
	if actor.ID != "" {
		return actor, nil
	}

	me, err := c.Me(ctx)
	if err != nil {
		return roomsync.Actor{}, err
	}
	actor = roomsync.Actor{ID: me.ID, Role: me.Role}
	c.mu.Lock()
	c.actor = actor
	c.mu.Unlock()
	return actor, nil
}

func (c *Client) SetRole(ctx context.Context, userID string, role roomsync.Role) error {
	return c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(userID)+"/role", nil,
		map[string]roomsync.Role{"role": role}, nil)
}

func (c *Client) Rooms(ctx context.Context) ([]RoomPreview, error) {
	var rooms []RoomPreview
	err := c.do(ctx, http.MethodGet, "/api/rooms", nil, nil, &rooms)
	return rooms, err
}

func (c *Client) CreateRoom(ctx context.Context, name string) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/rooms", nil, map[string]string{"name": name}, &res)
	return res.ID, err
}

func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	return roomError(c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/members", nil, nil, nil))
}

func (c *Client) FetchRoom(ctx context.Context, roomID string) (roomsync.Room, error) {
	var room roomsync.Room
	err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil, nil, &room)
	return room, roomError(err)
}

func (c *Client) FetchMessages(ctx context.Context, roomID string) ([]roomsync.MessageRecord, error) {
	var records []roomsync.MessageRecord
	err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/messages", nil, nil, &records)
	return records, roomError(err)
}

func (c *Client) FetchProfiles(ctx context.Context, ids []string) ([]roomsync.AuthorProfile, error) {
	var profiles []roomsync.AuthorProfile
	for start := 0; start < len(ids); start += profileBatch {
		end := min(start+profileBatch, len(ids))
		var batch []roomsync.AuthorProfile
		query := url.Values{"ids": {strings.Join(ids[start:end], ",")}}
		if err := c.do(ctx, http.MethodGet, "/api/profiles", query, nil, &batch); err != nil {
			return nil, err
		}
		profiles = append(profiles, batch...)
	}
	return profiles, nil
}

func (c *Client) MarkRead(ctx context.Context, roomID string) error {
	return roomError(c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/read", nil, nil, nil))
}

type sendMessage struct {
	Body          string                  `json:"body"`
	ReplyToID     string                  `json:"reply_to_id,omitempty"`
	ReplySnapshot *roomsync.ReplySnapshot `json:"reply_snapshot,omitempty"`
}

// InsertMessage posts m as the signed in user. m.AuthorID is not sent; the
// server takes the author from the session.
func (c *Client) InsertMessage(ctx context.Context, m roomsync.NewMessage) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(m.RoomID)+"/messages", nil, sendMessage{
		Body:          m.Body,
		ReplyToID:     m.ReplyToID,
		ReplySnapshot: m.ReplySnapshot,
	}, &res)
	return res.ID, err
}

func (c *Client) UpdateMessage(ctx context.Context, id, body string) error {
	return c.do(ctx, http.MethodPut, "/api/messages/"+url.PathEscape(id), nil,
		map[string]string{"body": body}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/messages/"+url.PathEscape(id), nil, nil, nil)
}
