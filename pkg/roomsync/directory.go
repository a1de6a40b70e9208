package roomsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/putto11262002/gymchat/pkg/syncmap"
)

// ProfileFetcher fetches author profiles in batches.
type ProfileFetcher interface {
	FetchProfiles(ctx context.Context, ids []string) ([]AuthorProfile, error)
}

// Directory caches author profiles by id.
// A Directory can be shared by several room sessions.
type Directory struct {
	fetcher  ProfileFetcher
	profiles *syncmap.Map[string, AuthorProfile]
	logger   *slog.Logger
}

func NewDirectory(fetcher ProfileFetcher, logger *slog.Logger) *Directory {
	return &Directory{
		fetcher:  fetcher,
		profiles: syncmap.New[string, AuthorProfile](),
		logger:   logger,
	}
}

// Resolve fetches the profiles of ids that are not cached yet in a single batch.
// Ids the backend does not know stay unresolved and render as the placeholder.
func (d *Directory) Resolve(ctx context.Context, ids ...string) error {
	wanted := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			wanted = append(wanted, id)
		}
	}
	missing := d.profiles.Missing(wanted...)
	if len(missing) == 0 {
		return nil
	}

	profiles, err := d.fetcher.FetchProfiles(ctx, missing)
	if err != nil {
		return fmt.Errorf("FetchProfiles: %w", err)
	}
	for _, p := range profiles {
		d.profiles.Store(p.ID, p)
	}
	d.logger.Debug("resolved profiles", slog.Int("requested", len(missing)), slog.Int("found", len(profiles)))
	return nil
}

// Lookup returns the cached profile of id, or the placeholder profile.
func (d *Directory) Lookup(id string) AuthorProfile {
	if p, ok := d.profiles.Load(id); ok {
		return p
	}
	return PlaceholderProfile(id)
}

// Known reports whether the profile of id is cached.
func (d *Directory) Known(id string) bool {
	_, ok := d.profiles.Load(id)
	return ok
}

// Put caches p, replacing any previous entry.
func (d *Directory) Put(p AuthorProfile) {
	d.profiles.Store(p.ID, p)
}
