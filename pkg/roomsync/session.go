package roomsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Options are the collaborators of a room session.
type Options struct {
	Query  SnapshotQuery
	Feed   ChangeFeed
	Writes WriteAPI
	Auth   Authenticator
	// Marker is told when the room has been read. Optional.
	Marker ReadMarker
	// Directory is shared between sessions when set, otherwise each session
	// gets its own.
	Directory *Directory
	Logger    *slog.Logger
}

// Session is the state of one open room: its store, composer and the
// goroutine reconciling the change feed. It lives from Open until Close.
type Session struct {
	roomID    string
	store     *MessageStore
	directory *Directory
	composer  *Composer
	logger    *slog.Logger

	changes chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.RWMutex
	room   Room
	status error
	sub    Subscription
}

// Open activates a room. It subscribes to the change feed, loads the history,
// seeds the store and then starts reconciling, so events that arrive during
// the load are applied after the snapshot rather than before it.
//
// Open always returns a session. When the history or the subscription is
// unavailable the session is degraded: Status reports the *LoadError or
// *SubscriptionError and the view stays empty or stale until the room is
// opened again.
func Open(ctx context.Context, roomID string, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	directory := opts.Directory
	if directory == nil {
		directory = NewDirectory(opts.Query, logger)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		roomID:    roomID,
		store:     NewMessageStore(),
		directory: directory,
		logger:    logger.With(slog.String("room", roomID)),
		changes:   make(chan struct{}, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
		room:      Room{ID: roomID},
	}
	s.composer = NewComposer(roomID, s.store, directory, opts.Writes, opts.Auth, logger)

	sub, err := opts.Feed.Subscribe(ctx, roomID)
	if err != nil {
		s.degrade(&SubscriptionError{RoomID: roomID, Err: err})
	}

	loader := NewHistoryLoader(opts.Query, directory, logger)
	h, err := loader.Load(ctx, roomID)
	if err != nil {
		s.degrade(err)
		if sub != nil {
			sub.Close()
		}
		close(s.done)
		s.notify()
		return s
	}
	s.mu.Lock()
	s.room = h.Room
	s.mu.Unlock()
	s.store.UpsertAll(h.Messages)
	s.notify()

	if opts.Marker != nil {
		if err := opts.Marker.MarkRead(ctx, roomID); err != nil {
			s.logger.Warn("marking room read", slog.String("err", err.Error()))
		}
	}

	if sub == nil {
		close(s.done)
		return s
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	rec := NewReconciler(roomID, s.store, directory, loader, logger)
	rec.OnChange(s.notify)
	go func() {
		defer close(s.done)
		if err := rec.Run(runCtx, sub); err != nil {
			s.degrade(err)
			s.notify()
		}
	}()
	return s
}

// degrade records the first failure. A *LoadError replaces any other status.
func (s *Session) degrade(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		s.status = err
		return
	}
	var current, incoming *LoadError
	if !errors.As(s.status, &current) && errors.As(err, &incoming) {
		s.status = err
	}
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) RoomID() string {
	return s.roomID
}

// Room returns the room header. Only the id is set if the history failed to load.
func (s *Session) Room() Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// Status returns nil while the session is fresh, or the *LoadError or
// *SubscriptionError that degraded it.
func (s *Session) Status() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Changes receives a value after the view may have changed.
// Notifications are coalesced; readers should re-read Messages and Status.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Done is closed once the session no longer applies notifications.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Store() *MessageStore {
	return s.store
}

func (s *Session) Composer() *Composer {
	return s.composer
}

// Messages returns the messages in display order joined with their authors.
// Authors that are not resolved render with the placeholder profile.
func (s *Session) Messages() []RenderedMessage {
	out := make([]RenderedMessage, 0, s.store.Len())
	for m := range s.store.All() {
		out = append(out, RenderedMessage{Message: m, Author: s.directory.Lookup(m.AuthorID)})
	}
	return out
}

// Permissions reports what actor may do to the message id.
func (s *Session) Permissions(actor Actor, id string) (Permissions, bool) {
	m, ok := s.store.Get(id)
	if !ok {
		return Permissions{}, false
	}
	return CanModify(actor.Role, actor.ID, m), true
}

// Close stops reconciling and releases the subscription. It waits for the
// reconciling goroutine to return.
func (s *Session) Close() error {
	s.cancel()
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	var err error
	if sub != nil {
		err = sub.Close()
	}
	<-s.done
	return err
}
