package roomsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type SessionFixture struct {
	query  *fakeQuery
	sub    *fakeSub
	feed   *fakeFeed
	writes *fakeWrites
	marker *fakeMarker
	ctx    context.Context
}

func NewSessionFixture(t *testing.T) *SessionFixture {
	q := newFakeQuery()
	q.addProfile(AuthorProfile{ID: "u1", DisplayName: "Ann"})
	sub := newFakeSub()
	return &SessionFixture{
		query:  q,
		sub:    sub,
		feed:   &fakeFeed{sub: sub},
		writes: newFakeWrites(),
		marker: &fakeMarker{},
		ctx:    context.Background(),
	}
}

func (f *SessionFixture) open(t *testing.T, roomID string) *Session {
	s := Open(f.ctx, roomID, Options{
		Query:  f.query,
		Feed:   f.feed,
		Writes: f.writes,
		Auth:   &fakeAuth{actor: Actor{ID: "u1"}},
		Marker: f.marker,
		Logger: discard,
	})
	t.Cleanup(func() { s.Close() })
	return s
}

func bodies(ms []RenderedMessage) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Body)
	}
	return out
}

func TestSessionLifecycle(t *testing.T) {
	t.Run("empty room then live insert", func(t *testing.T) {
		f := NewSessionFixture(t)
		f.query.addRoom("r1", "Iron Temple")
		s := f.open(t, "r1")

		require.NoError(t, s.Status())
		assert.Equal(t, "Iron Temple", s.Room().DisplayName)
		assert.Empty(t, s.Messages())
		assert.Equal(t, []string{"r1"}, f.marker.marked())

		f.sub.events <- insertOf(record("m1", "r1", "u1", "hi", t0))

		require.Eventually(t, func() bool {
			return len(s.Messages()) == 1
		}, time.Second, 10*time.Millisecond)
		got := s.Messages()[0]
		assert.Equal(t, "m1", got.ID)
		assert.Equal(t, "Ann", got.Author.DisplayName)
	})

	t.Run("events received during the load apply after the snapshot", func(t *testing.T) {
		f := NewSessionFixture(t)
		f.query.addRoom("r1", "Iron Temple", record("m1", "r1", "u1", "hi", t0))
		f.sub.events <- insertOf(record("m1", "r1", "u1", "hi", t0))
		f.sub.events <- updateOf("m1", "r1", "edited", at(3))

		s := f.open(t, "r1")

		require.Eventually(t, func() bool {
			ms := s.Messages()
			return len(ms) == 1 && ms[0].Body == "edited"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("unknown author renders as placeholder", func(t *testing.T) {
		f := NewSessionFixture(t)
		f.query.addRoom("r1", "Iron Temple", record("m1", "r1", "stranger", "hey", t0))
		s := f.open(t, "r1")

		require.Len(t, s.Messages(), 1)
		assert.Equal(t, PlaceholderName, s.Messages()[0].Author.DisplayName)
	})

	t.Run("close stops reconciling", func(t *testing.T) {
		f := NewSessionFixture(t)
		f.query.addRoom("r1", "Iron Temple")
		s := f.open(t, "r1")

		require.NoError(t, s.Close())
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("session still running after Close")
		}
		select {
		case <-f.sub.closed:
		default:
			t.Fatal("subscription not closed")
		}
		assert.NoError(t, s.Status())
		assert.NoError(t, s.Close())
	})

	t.Run("permissions follow the policy", func(t *testing.T) {
		f := NewSessionFixture(t)
		f.query.addRoom("r1", "Iron Temple", record("m1", "r1", "u1", "hi", t0))
		s := f.open(t, "r1")

		p, ok := s.Permissions(Actor{ID: "u2", Role: RoleModerator}, "m1")
		require.True(t, ok)
		assert.Equal(t, Permissions{CanDelete: true}, p)
		_, ok = s.Permissions(Actor{ID: "u1"}, "nope")
		assert.False(t, ok)
	})
}

func TestSessionDegraded(t *testing.T) {
	t.Run("unknown room", func(t *testing.T) {
		f := NewSessionFixture(t)
		s := f.open(t, "missing")

		var loadErr *LoadError
		require.ErrorAs(t, s.Status(), &loadErr)
		assert.ErrorIs(t, s.Status(), ErrRoomNotFound)
		assert.Empty(t, s.Messages())
		assert.Empty(t, f.marker.marked())
		<-s.Done()
	})

	t.Run("subscription refused", func(t *testing.T) {
		f := NewSessionFixture(t)
		f.query.addRoom("r1", "Iron Temple", record("m1", "r1", "u1", "hi", t0))
		f.feed.err = errors.New("handshake failed")
		s := f.open(t, "r1")

		var subErr *SubscriptionError
		require.ErrorAs(t, s.Status(), &subErr)
		assert.Len(t, s.Messages(), 1)
	})

	t.Run("load failure outranks a refused subscription", func(t *testing.T) {
		f := NewSessionFixture(t)
		f.feed.err = errors.New("handshake failed")
		s := f.open(t, "missing")

		var loadErr *LoadError
		require.ErrorAs(t, s.Status(), &loadErr)
		assert.ErrorIs(t, s.Status(), ErrRoomNotFound)
		assert.Empty(t, s.Messages())
		<-s.Done()
	})

	t.Run("subscription dropped", func(t *testing.T) {
		f := NewSessionFixture(t)
		f.query.addRoom("r1", "Iron Temple", record("m1", "r1", "u1", "hi", t0))
		s := f.open(t, "r1")
		require.NoError(t, s.Status())

		f.sub.drop(errors.New("connection reset"))

		require.Eventually(t, func() bool {
			var subErr *SubscriptionError
			return errors.As(s.Status(), &subErr)
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"hi"}, bodies(s.Messages()))
	})
}
