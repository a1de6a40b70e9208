package roomsync

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	t0      = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func strPtr(s string) *string {
	return &s
}

func record(id, roomID, authorID, body string, createdAt time.Time) MessageRecord {
	return MessageRecord{ID: id, RoomID: roomID, AuthorID: authorID, Body: strPtr(body), CreatedAt: createdAt}
}

func insertOf(r MessageRecord) Notification {
	return Notification{Kind: EventInsert, RoomID: r.RoomID, New: &r}
}

func updateOf(id, roomID, body string, updatedAt time.Time) Notification {
	return Notification{Kind: EventUpdate, RoomID: roomID, New: &MessageRecord{ID: id, RoomID: roomID, Body: strPtr(body), UpdatedAt: updatedAt}}
}

func deleteOf(id, roomID string) Notification {
	return Notification{Kind: EventDelete, RoomID: roomID, Old: &MessageRecord{ID: id}}
}

type fakeQuery struct {
	mu            sync.Mutex
	rooms         map[string]Room
	messages      map[string][]MessageRecord
	profiles      map[string]AuthorProfile
	err           error
	profileErr    error
	profileCalls  [][]string
	messagesCalls int
}

func newFakeQuery() *fakeQuery {
	return &fakeQuery{
		rooms:    make(map[string]Room),
		messages: make(map[string][]MessageRecord),
		profiles: make(map[string]AuthorProfile),
	}
}

func (q *fakeQuery) addRoom(id, name string, records ...MessageRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rooms[id] = Room{ID: id, DisplayName: name}
	q.messages[id] = append(q.messages[id], records...)
}

func (q *fakeQuery) addProfile(p AuthorProfile) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.profiles[p.ID] = p
}

func (q *fakeQuery) FetchRoom(ctx context.Context, roomID string) (Room, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return Room{}, q.err
	}
	r, ok := q.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return r, nil
}

func (q *fakeQuery) FetchMessages(ctx context.Context, roomID string) ([]MessageRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messagesCalls++
	if q.err != nil {
		return nil, q.err
	}
	if _, ok := q.rooms[roomID]; !ok {
		return nil, ErrRoomNotFound
	}
	return slices.Clone(q.messages[roomID]), nil
}

func (q *fakeQuery) FetchProfiles(ctx context.Context, ids []string) ([]AuthorProfile, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.profileCalls = append(q.profileCalls, slices.Clone(ids))
	if q.profileErr != nil {
		return nil, q.profileErr
	}
	var out []AuthorProfile
	for _, id := range ids {
		if p, ok := q.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSub struct {
	events    chan Notification
	err       error
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeSub() *fakeSub {
	return &fakeSub{events: make(chan Notification, 64), closed: make(chan struct{})}
}

func (s *fakeSub) Events() <-chan Notification { return s.events }

func (s *fakeSub) Err() error { return s.err }

func (s *fakeSub) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		close(s.events)
	})
	return nil
}

// drop ends the subscription as a transport failure would.
func (s *fakeSub) drop(err error) {
	s.err = err
	s.Close()
}

type fakeFeed struct {
	sub *fakeSub
	err error
}

func (f *fakeFeed) Subscribe(ctx context.Context, roomID string) (Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

type fakeWrites struct {
	mu      sync.Mutex
	err     error
	inserts []NewMessage
	updates map[string]string
	deletes []string
}

func newFakeWrites() *fakeWrites {
	return &fakeWrites{updates: make(map[string]string)}
}

func (w *fakeWrites) InsertMessage(ctx context.Context, m NewMessage) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return "", w.err
	}
	w.inserts = append(w.inserts, m)
	return "new-id", nil
}

func (w *fakeWrites) UpdateMessage(ctx context.Context, id, body string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.updates[id] = body
	return nil
}

func (w *fakeWrites) DeleteMessage(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.deletes = append(w.deletes, id)
	return nil
}

type fakeAuth struct {
	actor Actor
	err   error
}

func (a *fakeAuth) CurrentActor(ctx context.Context) (Actor, error) {
	if a.err != nil {
		return Actor{}, a.err
	}
	return a.actor, nil
}

type fakeMarker struct {
	mu    sync.Mutex
	rooms []string
}

func (m *fakeMarker) MarkRead(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms = append(m.rooms, roomID)
	return nil
}

func (m *fakeMarker) marked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rooms)
}
