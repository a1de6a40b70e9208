package roomsync

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// EventKind identifies the change carried by a Notification.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// MessageRecord is a message row as the backend delivers it.
// Every field is optional on the wire; which fields must be present
// depends on the kind of the notification carrying it.
type MessageRecord struct {
	ID           string    `json:"id,omitempty" validate:"required"`
	RoomID       string    `json:"room_id,omitempty" validate:"required"`
	AuthorID     string    `json:"author_id,omitempty" validate:"required"`
	Body         *string   `json:"body,omitempty" validate:"required"`
	CreatedAt    time.Time `json:"created_at,omitempty" validate:"required"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	ReplyToID    string    `json:"reply_to_id,omitempty"`
	ReplyPreview *string   `json:"reply_preview,omitempty"`
	ReplyAuthor  *string   `json:"reply_author,omitempty"`
}

var (
	insertFields = []string{"ID", "RoomID", "AuthorID", "Body", "CreatedAt"}
	updateFields = []string{"ID", "Body"}
)

// NewRecord converts a message into its wire form.
func NewRecord(m Message) MessageRecord {
	body := m.Body
	r := MessageRecord{
		ID:        m.ID,
		RoomID:    m.RoomID,
		AuthorID:  m.AuthorID,
		Body:      &body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.EditedAt,
		ReplyToID: m.ReplyToID,
	}
	if m.ReplySnapshot != nil {
		author, preview := m.ReplySnapshot.AuthorDisplayName, m.ReplySnapshot.BodyPreview
		r.ReplyAuthor = &author
		r.ReplyPreview = &preview
	}
	return r
}

// ValidateFull checks that r carries every field of a complete message.
func (r *MessageRecord) ValidateFull() error {
	return validate.StructPartial(r, insertFields...)
}

// ValidateBody checks that r carries an id and a body.
func (r *MessageRecord) ValidateBody() error {
	return validate.StructPartial(r, updateFields...)
}

// Message converts a validated record into a Message.
func (r *MessageRecord) Message() Message {
	m := Message{
		ID:        r.ID,
		RoomID:    r.RoomID,
		AuthorID:  r.AuthorID,
		CreatedAt: r.CreatedAt,
		EditedAt:  r.UpdatedAt,
		ReplyToID: r.ReplyToID,
	}
	if r.Body != nil {
		m.Body = *r.Body
	}
	if r.ReplyPreview != nil || r.ReplyAuthor != nil {
		snap := &ReplySnapshot{}
		if r.ReplyAuthor != nil {
			snap.AuthorDisplayName = *r.ReplyAuthor
		}
		if r.ReplyPreview != nil {
			snap.BodyPreview = *r.ReplyPreview
		}
		m.ReplySnapshot = snap
	}
	return m
}

// Notification is one change delivered by the feed.
// Insert and update carry the new row in New. Delete carries the removed
// row in Old, which may be partial or missing when the transport drops it.
type Notification struct {
	Kind   EventKind      `json:"kind"`
	RoomID string         `json:"room_id,omitempty"`
	New    *MessageRecord `json:"new,omitempty"`
	Old    *MessageRecord `json:"old,omitempty"`
}

// room returns the room the notification refers to, or "" if it carries none.
func (n Notification) room() string {
	switch {
	case n.New != nil && n.New.RoomID != "":
		return n.New.RoomID
	case n.Old != nil && n.Old.RoomID != "":
		return n.Old.RoomID
	default:
		return n.RoomID
	}
}

// deletedID returns the id of the deleted row, looking at the old row first.
func (n Notification) deletedID() string {
	if n.Old != nil && n.Old.ID != "" {
		return n.Old.ID
	}
	if n.New != nil && n.New.ID != "" {
		return n.New.ID
	}
	return ""
}

// SnapshotQuery reads the current state of a room.
type SnapshotQuery interface {
	// FetchRoom returns the room header. It returns ErrRoomNotFound for unknown rooms.
	FetchRoom(ctx context.Context, roomID string) (Room, error)
	// FetchMessages returns the messages of a room in ascending creation order.
	FetchMessages(ctx context.Context, roomID string) ([]MessageRecord, error)
	// FetchProfiles returns the profiles of the given authors. Unknown ids are omitted.
	FetchProfiles(ctx context.Context, ids []string) ([]AuthorProfile, error)
}

// Subscription is an active change feed for one room.
type Subscription interface {
	// Events delivers notifications until the subscription ends, then is closed.
	Events() <-chan Notification
	// Err returns the reason the subscription ended, or nil if it was closed by the caller.
	Err() error
	Close() error
}

// ChangeFeed opens per-room subscriptions.
type ChangeFeed interface {
	Subscribe(ctx context.Context, roomID string) (Subscription, error)
}

// NewMessage holds the fields of an insert request.
type NewMessage struct {
	RoomID        string         `json:"room_id"`
	AuthorID      string         `json:"author_id"`
	Body          string         `json:"body"`
	ReplyToID     string         `json:"reply_to_id,omitempty"`
	ReplySnapshot *ReplySnapshot `json:"reply_snapshot,omitempty"`
}

// WriteAPI issues writes to the backend.
type WriteAPI interface {
	InsertMessage(ctx context.Context, m NewMessage) (string, error)
	UpdateMessage(ctx context.Context, id, body string) error
	DeleteMessage(ctx context.Context, id string) error
}

// Actor is the signed in user.
type Actor struct {
	ID   string
	Role Role
}

// Authenticator reports the signed in user.
type Authenticator interface {
	// CurrentActor returns ErrUnauthenticated when nobody is signed in.
	CurrentActor(ctx context.Context) (Actor, error)
}

// ReadMarker records that the signed in user has read a room.
type ReadMarker interface {
	MarkRead(ctx context.Context, roomID string) error
}
