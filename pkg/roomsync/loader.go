package roomsync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"
)

// History is the initial snapshot of a room.
type History struct {
	Room     Room
	Messages []Message
	// AuthorIDs holds the distinct authors referenced by Messages.
	AuthorIDs []string
}

// HistoryLoader fetches the snapshot a room session is seeded with.
type HistoryLoader struct {
	query     SnapshotQuery
	directory *Directory
	logger    *slog.Logger
}

func NewHistoryLoader(query SnapshotQuery, directory *Directory, logger *slog.Logger) *HistoryLoader {
	return &HistoryLoader{query: query, directory: directory, logger: logger}
}

// Load fetches the room header and its messages, then resolves every author
// through the directory. It returns a *LoadError when the room is unknown or
// the backend cannot be reached. Failing to resolve profiles does not fail
// the load.
func (l *HistoryLoader) Load(ctx context.Context, roomID string) (*History, error) {
	if roomID == "" {
		return nil, &LoadError{RoomID: roomID, Err: ErrRoomNotFound}
	}

	var (
		room    Room
		records []MessageRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := l.query.FetchRoom(gctx, roomID)
		if err != nil {
			return fmt.Errorf("FetchRoom: %w", err)
		}
		room = r
		return nil
	})
	g.Go(func() error {
		rs, err := l.query.FetchMessages(gctx, roomID)
		if err != nil {
			return fmt.Errorf("FetchMessages: %w", err)
		}
		records = rs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, &LoadError{RoomID: roomID, Err: err}
	}

	h := &History{Room: room, Messages: make([]Message, 0, len(records))}
	seen := make(map[string]struct{})
	for i := range records {
		rec := &records[i]
		if err := rec.ValidateFull(); err != nil {
			l.logger.Warn("skipping malformed history record",
				slog.String("room", roomID), slog.String("id", rec.ID), slog.String("err", err.Error()))
			continue
		}
		m := rec.Message()
		h.Messages = append(h.Messages, m)
		if _, ok := seen[m.AuthorID]; !ok {
			seen[m.AuthorID] = struct{}{}
			h.AuthorIDs = append(h.AuthorIDs, m.AuthorID)
		}
	}
	slices.SortFunc(h.Messages, compareMessages)

	if err := l.directory.Resolve(ctx, h.AuthorIDs...); err != nil {
		l.logger.Warn("resolving history authors", slog.String("room", roomID), slog.String("err", err.Error()))
	}
	return h, nil
}
