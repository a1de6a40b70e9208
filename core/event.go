package core

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/putto11262002/gymchat/pkg/roomsync"
)

// EventChange frames carry a roomsync.Notification.
const EventChange = "change"

type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Payload.Size: %d}", e.Type, len(e.Payload))
}

func NewEvent(t string, payload any) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{Type: t, Payload: b}, nil
}

// NewChangeEvent wraps a change of one message.
func NewChangeEvent(kind roomsync.EventKind, m roomsync.Message) (*Event, error) {
	record := roomsync.NewRecord(m)
	n := roomsync.Notification{Kind: kind, RoomID: m.RoomID}
	if kind == roomsync.EventDelete {
		n.Old = &record
	} else {
		n.New = &record
	}
	return NewEvent(EventChange, n)
}

// Notification decodes the payload of a change event.
func (e *Event) Notification() (roomsync.Notification, error) {
	var n roomsync.Notification
	if e.Type != EventChange {
		return n, fmt.Errorf("unexpected event type %q", e.Type)
	}
	if err := json.Unmarshal(e.Payload, &n); err != nil {
		return n, fmt.Errorf("decode notification: %w", err)
	}
	return n, nil
}

func EncodeEvent(w io.Writer, e *Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader, e *Event) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}
