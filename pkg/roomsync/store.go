package roomsync

import (
	"iter"
	"slices"
	"sync"
	"time"
)

// MessageStore is the ordered set of messages of one room.
// Messages are unique by id and kept in ascending (CreatedAt, ID) order.
// Only Body and EditedAt can change once a message is stored.
//
// Removed ids are remembered so that a late duplicate insert cannot bring a
// deleted message back. They are never rendered.
type MessageStore struct {
	mu       sync.RWMutex
	byID     map[string]int
	messages []Message
	removed  map[string]struct{}
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID:    make(map[string]int),
		removed: make(map[string]struct{}),
	}
}

// Upsert inserts m if its id is absent. Otherwise it replaces the stored body
// only when m.EditedAt is after the stored version, and leaves every other
// field as first inserted. A copy without an edit time never overwrites.
// It reports whether the store changed.
func (s *MessageStore) Upsert(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert(m)
}

// UpsertAll upserts every message in ms and reports whether the store changed.
func (s *MessageStore) UpsertAll(ms []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, m := range ms {
		if s.upsert(m) {
			changed = true
		}
	}
	return changed
}

func (s *MessageStore) upsert(m Message) bool {
	if i, ok := s.byID[m.ID]; ok {
		if !m.EditedAt.After(s.messages[i].version()) {
			return false
		}
		return s.setBody(i, m.Body, m.EditedAt)
	}
	if _, ok := s.removed[m.ID]; ok {
		return false
	}
	if m.ReplySnapshot != nil {
		snap := *m.ReplySnapshot
		m.ReplySnapshot = &snap
	}
	i, _ := slices.BinarySearchFunc(s.messages, m, compareMessages)
	s.messages = slices.Insert(s.messages, i, m)
	s.reindex(i)
	return true
}

// UpdateBody replaces the body of the message with the given id.
// editedAt is the server time of the edit; a zero value is treated as current.
// It is a no-op if the id is absent or the stored body is newer.
func (s *MessageStore) UpdateBody(id, body string, editedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return false
	}
	return s.setBody(i, body, editedAt)
}

func (s *MessageStore) setBody(i int, body string, editedAt time.Time) bool {
	stored := &s.messages[i]
	if !editedAt.IsZero() && editedAt.Before(stored.version()) {
		return false
	}
	if editedAt.IsZero() && !stored.EditedAt.IsZero() && stored.Body != body {
		// an unversioned copy of a message that has a known edit
		return false
	}
	if stored.Body == body && !editedAt.After(stored.EditedAt) {
		return false
	}
	stored.Body = body
	if editedAt.After(stored.EditedAt) {
		stored.EditedAt = editedAt
	}
	return true
}

// Remove deletes the message with the given id. It is a no-op if the id is absent.
func (s *MessageStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return false
	}
	s.messages = slices.Delete(s.messages, i, i+1)
	delete(s.byID, id)
	s.removed[id] = struct{}{}
	s.reindex(i)
	return true
}

// Reset replaces the whole content of the store with ms.
// Messages present in ms are no longer considered removed.
func (s *MessageStore) Reset(ms []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = s.messages[:0]
	clear(s.byID)
	for _, m := range ms {
		delete(s.removed, m.ID)
		s.upsert(m)
	}
}

// reindex refreshes the id index for positions from i onward.
func (s *MessageStore) reindex(from int) {
	for j := from; j < len(s.messages); j++ {
		s.byID[s.messages[j].ID] = j
	}
}

// Get returns the message with the given id.
func (s *MessageStore) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[i], true
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// List returns a copy of the messages in display order.
func (s *MessageStore) List() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// All returns an iterator over the messages in display order as they were
// when All was called. The iterator can be ranged over more than once and
// is not affected by later writes.
func (s *MessageStore) All() iter.Seq[Message] {
	snapshot := s.List()
	return func(yield func(Message) bool) {
		for _, m := range snapshot {
			if !yield(m) {
				return
			}
		}
	}
}
