package roomsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ComposerState is the mode of the composer.
type ComposerState int

const (
	StateIdle ComposerState = iota
	StateComposing
	StateReplying
	StateEditing
)

func (s ComposerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateReplying:
		return "replying"
	case StateEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// ComposerView is a point in time copy of the composer state.
type ComposerView struct {
	State ComposerState
	// TargetID is the message being replied to or edited.
	TargetID string
	Draft    string
	// Reply is the snapshot that will be sent with a reply.
	Reply *ReplySnapshot
}

// Composer is the compose, reply and edit state machine of one room.
// It issues writes but never touches the store: a sent message becomes
// visible only once its insert notification is reconciled.
type Composer struct {
	roomID    string
	store     *MessageStore
	directory *Directory
	writes    WriteAPI
	auth      Authenticator
	logger    *slog.Logger

	mu     sync.Mutex
	state  ComposerState
	target string
	draft  string
	reply  *ReplySnapshot
}

func NewComposer(roomID string, store *MessageStore, directory *Directory, writes WriteAPI, auth Authenticator, logger *slog.Logger) *Composer {
	return &Composer{
		roomID:    roomID,
		store:     store,
		directory: directory,
		writes:    writes,
		auth:      auth,
		logger:    logger.With(slog.String("room", roomID)),
	}
}

// View returns the current state.
func (c *Composer) View() ComposerView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := ComposerView{State: c.state, TargetID: c.target, Draft: c.draft}
	if c.reply != nil {
		snap := *c.reply
		v.Reply = &snap
	}
	return v
}

// SetDraft replaces the draft text. From idle a non-blank draft moves the
// composer to composing, and clearing it while composing moves back to idle.
// Replying and editing keep their target.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
	blank := strings.TrimSpace(text) == ""
	switch {
	case c.state == StateIdle && !blank:
		c.state = StateComposing
	case c.state == StateComposing && blank:
		c.state = StateIdle
	}
}

// StartReply targets the message id for a reply. The author name and body of
// the target are copied now and sent unchanged, even if the target is edited
// or deleted before the reply is submitted.
func (c *Composer) StartReply(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle, StateComposing, StateReplying:
	default:
		return fmt.Errorf("reply from %s: %w", c.state, ErrInvalidTransition)
	}
	target, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("reply to %q: %w", id, ErrUnknownMessage)
	}
	c.state = StateReplying
	c.target = id
	c.reply = &ReplySnapshot{
		AuthorDisplayName: c.directory.Lookup(target.AuthorID).DisplayName,
		BodyPreview:       target.Body,
	}
	return nil
}

// StartEdit targets the message id for an edit and fills the draft with its
// current body. Only the author of a message may edit it.
func (c *Composer) StartEdit(ctx context.Context, id string) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	switch state {
	case StateIdle, StateComposing:
	default:
		return fmt.Errorf("edit from %s: %w", state, ErrInvalidTransition)
	}

	target, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("edit %q: %w", id, ErrUnknownMessage)
	}
	actor, err := c.auth.CurrentActor(ctx)
	if err != nil {
		return fmt.Errorf("CurrentActor: %w", err)
	}
	if !CanModify(actor.Role, actor.ID, target).CanEdit {
		return fmt.Errorf("edit %q: %w", id, ErrNotPermitted)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != state {
		return fmt.Errorf("edit from %s: %w", c.state, ErrInvalidTransition)
	}
	c.state = StateEditing
	c.target = id
	c.draft = target.Body
	c.reply = nil
	return nil
}

// Cancel returns to idle and discards the draft and any target.
func (c *Composer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Composer) reset() {
	c.state = StateIdle
	c.target = ""
	c.draft = ""
	c.reply = nil
}

// Submit sends text. While editing it updates the target, otherwise it
// inserts a new message, carrying the reply target and snapshot when
// replying. On success the composer returns to idle. On failure it returns a
// *SubmitError and keeps its state and draft so the caller can retry.
func (c *Composer) Submit(ctx context.Context, text string) error {
	c.mu.Lock()
	c.draft = text
	state, target := c.state, c.target
	var reply *ReplySnapshot
	if c.reply != nil {
		snap := *c.reply
		reply = &snap
	}
	c.mu.Unlock()

	op := "insert"
	if state == StateEditing {
		op = "update"
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return &SubmitError{Op: op, Err: ErrEmptyMessage}
	}
	actor, err := c.auth.CurrentActor(ctx)
	if err != nil {
		return &SubmitError{Op: op, Err: err}
	}
	if actor.ID == "" {
		return &SubmitError{Op: op, Err: ErrUnauthenticated}
	}

	if state == StateEditing {
		err = c.writes.UpdateMessage(ctx, target, body)
	} else {
		m := NewMessage{RoomID: c.roomID, AuthorID: actor.ID, Body: body}
		if state == StateReplying {
			m.ReplyToID = target
			m.ReplySnapshot = reply
		}
		var id string
		id, err = c.writes.InsertMessage(ctx, m)
		if err == nil {
			c.logger.Debug("message sent", slog.String("id", id))
		}
	}
	if err != nil {
		c.logger.Warn("submit failed", slog.String("op", op), slog.String("err", err.Error()))
		return &SubmitError{Op: op, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Leave a state the user changed while the request was in flight alone.
	if c.state == state && c.target == target {
		c.reset()
	}
	return nil
}

// Delete asks the backend to delete the message id. The message disappears
// once the delete notification is reconciled. An edit of the deleted message
// is abandoned; a reply to it is kept along with its snapshot.
func (c *Composer) Delete(ctx context.Context, id string) error {
	target, ok := c.store.Get(id)
	if !ok {
		return &SubmitError{Op: "delete", Err: fmt.Errorf("%q: %w", id, ErrUnknownMessage)}
	}
	actor, err := c.auth.CurrentActor(ctx)
	if err != nil {
		return &SubmitError{Op: "delete", Err: err}
	}
	if !CanModify(actor.Role, actor.ID, target).CanDelete {
		return &SubmitError{Op: "delete", Err: ErrNotPermitted}
	}
	if err := c.writes.DeleteMessage(ctx, id); err != nil {
		return &SubmitError{Op: "delete", Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateEditing && c.target == id {
		c.reset()
	}
	return nil
}
