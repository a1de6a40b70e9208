package roomsync

import (
	"context"
	"log/slog"
)

// Outcome reports what applying a notification did to the store.
type Outcome int

const (
	// OutcomeApplied means the store changed.
	OutcomeApplied Outcome = iota
	// OutcomeNoop means the notification was valid but already reflected,
	// or referred to a message the store does not hold.
	OutcomeNoop
	// OutcomeIgnored means the notification belongs to another room.
	OutcomeIgnored
	// OutcomeMalformed means the payload was missing required fields.
	OutcomeMalformed
	// OutcomeReloaded means the store was rebuilt from a fresh history load.
	OutcomeReloaded
	// OutcomeFailed means a consistency reload was needed but could not complete.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoop:
		return "noop"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeReloaded:
		return "reloaded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reconciler applies change notifications of one room to its MessageStore.
// Every notification may arrive more than once and in any order, so each
// operation is idempotent: an update or delete for an id the store does not
// hold is dropped.
type Reconciler struct {
	roomID    string
	store     *MessageStore
	directory *Directory
	loader    *HistoryLoader
	logger    *slog.Logger
	onChange  func()
}

func NewReconciler(roomID string, store *MessageStore, directory *Directory, loader *HistoryLoader, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		roomID:    roomID,
		store:     store,
		directory: directory,
		loader:    loader,
		logger:    logger.With(slog.String("room", roomID)),
	}
}

// OnChange registers f to be called after every notification that changed the store.
func (r *Reconciler) OnChange(f func()) {
	r.onChange = f
}

// Apply applies a single notification.
func (r *Reconciler) Apply(ctx context.Context, n Notification) Outcome {
	if room := n.room(); room != "" && room != r.roomID {
		return OutcomeIgnored
	}

	var out Outcome
	switch n.Kind {
	case EventInsert:
		out = r.applyInsert(ctx, n)
	case EventUpdate:
		out = r.applyUpdate(n)
	case EventDelete:
		out = r.applyDelete(ctx, n)
	default:
		r.logger.Warn("unknown notification kind", slog.String("kind", string(n.Kind)))
		out = OutcomeMalformed
	}

	if out == OutcomeApplied || out == OutcomeReloaded {
		if r.onChange != nil {
			r.onChange()
		}
	}
	return out
}

func (r *Reconciler) applyInsert(ctx context.Context, n Notification) Outcome {
	if n.New == nil {
		r.logger.Warn("insert without a record")
		return OutcomeMalformed
	}
	if err := n.New.ValidateFull(); err != nil {
		r.logger.Warn("malformed insert", slog.String("id", n.New.ID), slog.String("err", err.Error()))
		return OutcomeMalformed
	}
	m := n.New.Message()
	if err := r.directory.Resolve(ctx, m.AuthorID); err != nil {
		r.logger.Warn("resolving author", slog.String("author", m.AuthorID), slog.String("err", err.Error()))
	}
	if r.store.Upsert(m) {
		return OutcomeApplied
	}
	return OutcomeNoop
}

func (r *Reconciler) applyUpdate(n Notification) Outcome {
	if n.New == nil {
		r.logger.Warn("update without a record")
		return OutcomeMalformed
	}
	if err := n.New.ValidateBody(); err != nil {
		r.logger.Warn("malformed update", slog.String("id", n.New.ID), slog.String("err", err.Error()))
		return OutcomeMalformed
	}
	if r.store.UpdateBody(n.New.ID, *n.New.Body, n.New.UpdatedAt) {
		return OutcomeApplied
	}
	return OutcomeNoop
}

func (r *Reconciler) applyDelete(ctx context.Context, n Notification) Outcome {
	id := n.deletedID()
	if id != "" {
		if r.store.Remove(id) {
			return OutcomeApplied
		}
		return OutcomeNoop
	}

	r.logger.Warn("delete without an id, reloading room")
	h, err := r.loader.Load(ctx, r.roomID)
	if err != nil {
		r.logger.Error("reloading room", slog.String("err", err.Error()))
		return OutcomeFailed
	}
	r.store.Reset(h.Messages)
	return OutcomeReloaded
}

// Run applies notifications from sub until ctx is done or the subscription ends.
// It returns nil when ctx is done and a *SubscriptionError otherwise.
// No reconnection is attempted.
func (r *Reconciler) Run(ctx context.Context, sub Subscription) error {
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				err := sub.Err()
				if err == nil {
					err = ErrSubscriptionClosed
				}
				r.logger.Warn("subscription ended", slog.String("err", err.Error()))
				return &SubscriptionError{RoomID: r.roomID, Err: err}
			}
			out := r.Apply(ctx, n)
			r.logger.Debug("notification", slog.String("kind", string(n.Kind)), slog.String("outcome", out.String()))
		}
	}
}
