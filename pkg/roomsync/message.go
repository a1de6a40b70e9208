package roomsync

import (
	"cmp"
	"strings"
	"time"
)

// PlaceholderName is the display name used for authors whose profile is unknown.
const PlaceholderName = "User"

// Role is the community role of an author.
// The zero value is RoleUser.
type Role int

const (
	RoleUser Role = iota
	RoleTrainer
	RoleVenueOwner
	RoleModerator
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleUser:       "user",
	RoleTrainer:    "trainer",
	RoleVenueOwner: "venue_owner",
	RoleModerator:  "moderator",
	RoleAdmin:      "admin",
}

// ParseRole maps a stored role string to a Role.
// Short forms used by older clients (pt, gym, mod) are accepted.
// Unknown and empty values map to RoleUser.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trainer", "pt":
		return RoleTrainer
	case "venue_owner", "venueowner", "gym", "owner":
		return RoleVenueOwner
	case "moderator", "mod":
		return RoleModerator
	case "admin":
		return RoleAdmin
	default:
		return RoleUser
	}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return roleNames[RoleUser]
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// Room is the chat channel of one venue.
type Room struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
}

// AuthorProfile is the public identity of a message author.
type AuthorProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
	Role        Role   `json:"role"`
}

// PlaceholderProfile returns the profile rendered for an author that could not be resolved.
func PlaceholderProfile(id string) AuthorProfile {
	return AuthorProfile{ID: id, DisplayName: PlaceholderName, Role: RoleUser}
}

// ReplySnapshot is a copy of the replied-to message taken when the reply was sent.
// It is not refreshed when the original is edited or deleted.
type ReplySnapshot struct {
	AuthorDisplayName string `json:"author_display_name"`
	BodyPreview       string `json:"body_preview"`
}

// Message is a chat message in a room.
type Message struct {
	ID       string `json:"id"`
	RoomID   string `json:"room_id"`
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`
	// CreatedAt is assigned by the server and never changes.
	CreatedAt time.Time `json:"created_at"`
	// EditedAt is the server time of the last body change, zero if never edited.
	EditedAt      time.Time      `json:"edited_at,omitempty"`
	ReplyToID     string         `json:"reply_to_id,omitempty"`
	ReplySnapshot *ReplySnapshot `json:"reply_snapshot,omitempty"`
}

// IsReply reports whether m replies to another message.
func (m Message) IsReply() bool {
	return m.ReplyToID != ""
}

// version is the server time of the current body.
func (m Message) version() time.Time {
	if !m.EditedAt.IsZero() {
		return m.EditedAt
	}
	return m.CreatedAt
}

// compareMessages orders messages by creation time then id.
func compareMessages(a, b Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// RenderedMessage is a message joined with its author's profile.
type RenderedMessage struct {
	Message
	Author AuthorProfile `json:"author"`
}
