package roomsync

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound is returned when the room id is empty or unknown to the backend.
	ErrRoomNotFound = errors.New("room not found")
	// ErrUnauthenticated is returned when no actor is signed in.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrEmptyMessage is returned when the submitted text is blank.
	ErrEmptyMessage = errors.New("empty message")
	// ErrRejected is returned when the backend refuses a write.
	ErrRejected = errors.New("write rejected")
	// ErrNotPermitted is returned when the moderation policy denies an action.
	ErrNotPermitted = errors.New("not permitted")
	// ErrInvalidTransition is returned when the composer cannot enter the requested state.
	ErrInvalidTransition = errors.New("invalid composer transition")
	// ErrUnknownMessage is returned when a message id is not in the store.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrSubscriptionClosed is the cause of a SubscriptionError when the feed ends without an error.
	ErrSubscriptionClosed = errors.New("subscription closed")
)

// LoadError reports that the initial snapshot of a room is unavailable.
type LoadError struct {
	RoomID string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load room %q: %v", e.RoomID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SubmitError reports that a write was not accepted.
// The composer keeps its draft when it returns a SubmitError.
type SubmitError struct {
	Op  string
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// SubscriptionError reports that the change feed of a room stopped delivering.
type SubscriptionError struct {
	RoomID string
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to room %q: %v", e.RoomID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
