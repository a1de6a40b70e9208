package core

import (
	"context"
	"errors"
	"time"

	"github.com/putto11262002/gymchat/pkg/roomsync"
)

// Room is the chat room of one venue.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomPreview is a room as listed for one of its members.
type RoomPreview struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	LastMessageBody string     `json:"last_message_body,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	LastReadAt      *time.Time `json:"last_read_at,omitempty"`
	// Unread is true when the member has read the room before and a newer
	// message has arrived since.
	Unread bool `json:"unread"`
}

var (
	// ErrInvalidUser is returned when a user is not found or is invalid.
	ErrInvalidUser = errors.New("invalid user")
	// ErrInvalidRoom is returned when a chat room is not found.
	ErrInvalidRoom = errors.New("invalid room")
	// ErrInvalidMessage is returned when a message is invalid.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrMessageNotFound is returned when a message id is unknown.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotRoomMember is returned when a user acts on a room they have not joined.
	ErrNotRoomMember       = errors.New("not a room member")
	ErrDisAllowedOperation = errors.New("disallowed operation")
)

// MessageCreateInput represents the input for creating a message.
type MessageCreateInput struct {
	RoomID    string `json:"room_id" validate:"required"`
	AuthorID  string `json:"author_id" validate:"required"`
	Body      string `json:"body" validate:"required,max=4000"`
	ReplyToID string `json:"reply_to_id" validate:"required_with=Reply"`
	// Reply is the snapshot of the replied message as the sender saw it.
	Reply *roomsync.ReplySnapshot `json:"reply"`
}

// Validate validates the message input.
func (m *MessageCreateInput) Validate() error {
	return validate.Struct(m)
}

type ChatStore interface {
	// CreateRoom creates a room and makes the creator its first member.
	// If the creator does not exist, it returns ErrInvalidUser.
	CreateRoom(ctx context.Context, name, creatorID string) (string, error)

	// GetRoomByID returns the room with the given ID.
	// If the room is not found, it returns nil.
	GetRoomByID(ctx context.Context, roomID string) (*Room, error)

	// JoinRoom makes the user a member of the room. Joining twice is a no-op.
	JoinRoom(ctx context.Context, roomID, userID string) error

	IsRoomMember(ctx context.Context, roomID, userID string) (bool, error)

	// GetUserRooms returns the rooms the user joined, unread rooms first,
	// then by last activity.
	GetUserRooms(ctx context.Context, userID string) ([]RoomPreview, error)

	// MarkRoomRead sets the member's last read time to now and returns it.
	MarkRoomRead(ctx context.Context, roomID, userID string) (time.Time, error)

	// GetRoomMessages returns messages of the room in ascending (created_at, id) order.
	// A limit of zero or less returns every message after offset.
	GetRoomMessages(ctx context.Context, roomID string, offset, limit int) ([]roomsync.Message, error)

	// GetMessageByID returns nil if the message is not found.
	GetMessageByID(ctx context.Context, id string) (*roomsync.Message, error)

	// CreateMessage stores a message from a room member.
	// It returns ErrInvalidMessage if the input does not validate and
	// ErrNotRoomMember if the author has not joined the room.
	CreateMessage(ctx context.Context, input MessageCreateInput) (*roomsync.Message, error)

	// UpdateMessage replaces the body of a message. Only the author may edit.
	// Returns ErrNotRoomMember if the actor is not in the message's room.
	UpdateMessage(ctx context.Context, actorID, messageID, body string) (*roomsync.Message, error)

	// DeleteMessage removes a message. The author, moderators and admins may delete.
	// The actor must be a member of the message's room. The deleted message is returned.
	DeleteMessage(ctx context.Context, actorID, messageID string) (*roomsync.Message, error)
}
