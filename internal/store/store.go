// Package store holds the in-memory authoritative list of one signed-in
// user's tracked shows and every mutation verb over it.
//
// Each mutator follows the same two-phase protocol: compute the new show
// record purely from the old one, replace it in memory, then overwrite the
// full record at the persistence gateway. Mutations on a store are
// serialized through its mutex, so a rapid double-invocation of the same
// verb resolves in a deterministic order. A failed write records the error
// and triggers a reconciliation pass that re-reads the record so memory
// converges on the gateway's state instead of silently diverging.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/calewis/showtrack/internal/models"
)

var (
	// ErrShowNotFound is returned when a mutator targets a show the user
	// does not track.
	ErrShowNotFound = errors.New("show not tracked")
	// ErrEpisodeNotFound is returned when a mutator targets an episode the
	// show does not have.
	ErrEpisodeNotFound = errors.New("episode not found")
)

// Catalog is the read-only show catalog the store fetches episode lists from.
type Catalog interface {
	GetEpisodes(ctx context.Context, showID int) ([]models.Episode, error)
}

// Gateway is the persistence contract the store writes through. Records are
// whole documents: every update overwrites the full show. A missing record
// surfaces as pgx.ErrNoRows.
type Gateway interface {
	GetShows(ctx context.Context, userID uuid.UUID) ([]models.TrackedShow, error)
	GetShow(ctx context.Context, userID uuid.UUID, showID int) (*models.TrackedShow, error)
	AddShow(ctx context.Context, userID uuid.UUID, show models.Show, episodes []models.Episode) error
	UpdateShow(ctx context.Context, userID uuid.UUID, show models.TrackedShow) error
	DeleteShow(ctx context.Context, userID uuid.UUID, showID int) error
}

// Store is the in-memory source of truth for a single user's tracked shows.
// A Store without a user treats every operation as a no-op.
type Store struct {
	mu      sync.Mutex
	userID  uuid.UUID
	gateway Gateway
	catalog Catalog
	logger  *log.Logger
	now     func() time.Time

	shows   []models.TrackedShow
	loaded  bool
	lastErr error
}

// New creates a store bound to one user identity.
func New(userID uuid.UUID, gateway Gateway, catalog Catalog, logger *log.Logger) *Store {
	return &Store{
		userID:  userID,
		gateway: gateway,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// UserID returns the identity the store is bound to.
func (s *Store) UserID() uuid.UUID {
	return s.userID
}

// Shows returns a deep copy of the tracked shows so callers can read and
// render without holding the store's lock.
func (s *Store) Shows() []models.TrackedShow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.TrackedShow, len(s.shows))
	for i, show := range s.shows {
		out[i] = show.Clone()
	}
	return out
}

// Err returns the last load or persistence error, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Loaded reports whether the store has completed a LoadShows pass.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// LoadShows replaces memory with the full result of reading every record
// owned by the user. Calling it again reloads; memory is replaced, never
// merged.
func (s *Store) LoadShows(ctx context.Context) error {
	if s.userID == uuid.Nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shows, err := s.gateway.GetShows(ctx, s.userID)
	if err != nil {
		s.lastErr = err
		s.logger.Printf("Failed to load shows for user %s: %v", s.userID, err)
		return fmt.Errorf("failed to load shows: %w", err)
	}

	s.shows = shows
	s.loaded = true
	s.lastErr = nil
	return nil
}

// EnsureLoaded runs LoadShows once per session; later calls are no-ops.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	if s.userID == uuid.Nil {
		return nil
	}

	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()

	if loaded {
		return nil
	}
	return s.LoadShows(ctx)
}

// AddShow fetches the show's full episode list from the catalog, persists a
// new tracked record with every episode unwatched and currentSeason=1, then
// adds it to memory. A catalog or persistence failure propagates and leaves
// no partial record behind.
func (s *Store) AddShow(ctx context.Context, show models.Show) error {
	if s.userID == uuid.Nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	episodes, err := s.catalog.GetEpisodes(ctx, show.ID)
	if err != nil {
		s.lastErr = err
		s.logger.Printf("Failed to fetch episodes for show %d: %v", show.ID, err)
		return fmt.Errorf("failed to fetch episodes: %w", err)
	}

	for i := range episodes {
		episodes[i].Watched = false
		episodes[i].Note = nil
		episodes[i].WatchedAt = nil
	}

	if err := s.gateway.AddShow(ctx, s.userID, show, episodes); err != nil {
		s.lastErr = err
		s.logger.Printf("Failed to persist show %d: %v", show.ID, err)
		return fmt.Errorf("failed to add show: %w", err)
	}

	tracked := models.TrackedShow{
		Show:          show,
		UserID:        s.userID,
		Episodes:      episodes,
		CurrentSeason: 1,
	}

	// Re-adding a tracked show overwrites the record, so mirror that in memory.
	if idx := s.indexOf(show.ID); idx >= 0 {
		s.shows[idx] = tracked
	} else {
		s.shows = append(s.shows, tracked)
	}
	return nil
}

// DeleteShow removes the record from the gateway and from memory.
func (s *Store) DeleteShow(ctx context.Context, showID int) error {
	if s.userID == uuid.Nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.gateway.DeleteShow(ctx, s.userID, showID); err != nil {
		s.lastErr = err
		s.logger.Printf("Failed to delete show %d: %v", showID, err)
		return fmt.Errorf("failed to delete show: %w", err)
	}

	if idx := s.indexOf(showID); idx >= 0 {
		s.shows = append(s.shows[:idx], s.shows[idx+1:]...)
	}
	return nil
}

// ToggleEpisodeWatched flips the watched flag on exactly one episode,
// stamping watchedAt on the transition to watched and clearing it on the
// transition back.
func (s *Store) ToggleEpisodeWatched(ctx context.Context, showID, episodeID int) error {
	return s.mutate(ctx, showID, func(show *models.TrackedShow) error {
		ep := findEpisode(show, episodeID)
		if ep == nil {
			return ErrEpisodeNotFound
		}
		if ep.Watched {
			ep.Watched = false
			ep.WatchedAt = nil
		} else {
			ep.Watched = true
			ep.WatchedAt = s.timestamp()
		}
		return nil
	})
}

// WatchUntilEpisode marks the target episode watched along with every
// episode in an earlier season, or in the same season with a lower or equal
// number. Already-watched episodes keep their original timestamp; episodes
// after the target are untouched.
func (s *Store) WatchUntilEpisode(ctx context.Context, showID, episodeID int) error {
	return s.mutate(ctx, showID, func(show *models.TrackedShow) error {
		target := findEpisode(show, episodeID)
		if target == nil {
			return ErrEpisodeNotFound
		}
		season, number := target.Season, target.Number
		for i := range show.Episodes {
			ep := &show.Episodes[i]
			inRange := ep.Season < season || (ep.Season == season && ep.Number <= number)
			if inRange && !ep.Watched {
				ep.Watched = true
				ep.WatchedAt = s.timestamp()
			}
		}
		return nil
	})
}

// UpdateEpisodeNote replaces the note text on one episode. An empty string
// is a valid note, distinct from no note at all.
func (s *Store) UpdateEpisodeNote(ctx context.Context, showID, episodeID int, note string) error {
	return s.mutate(ctx, showID, func(show *models.TrackedShow) error {
		ep := findEpisode(show, episodeID)
		if ep == nil {
			return ErrEpisodeNotFound
		}
		ep.Note = &note
		return nil
	})
}

// SetCurrentSeason moves the current-season pointer. The season is
// caller-trusted and not validated against the show's episode set.
func (s *Store) SetCurrentSeason(ctx context.Context, showID, season int) error {
	return s.mutate(ctx, showID, func(show *models.TrackedShow) error {
		show.CurrentSeason = season
		return nil
	})
}

// MarkAllEpisodesWatched sets the watched flag on every episode of the show,
// or only those within season when season is non-nil. Marking watched stamps
// watchedAt on episodes that were unwatched and leaves existing timestamps
// alone; marking unwatched clears the flag and the timestamp.
func (s *Store) MarkAllEpisodesWatched(ctx context.Context, showID int, season *int, watched bool) error {
	return s.mutate(ctx, showID, func(show *models.TrackedShow) error {
		for i := range show.Episodes {
			ep := &show.Episodes[i]
			if season != nil && ep.Season != *season {
				continue
			}
			if watched {
				if !ep.Watched {
					ep.Watched = true
					ep.WatchedAt = s.timestamp()
				}
			} else {
				ep.Watched = false
				ep.WatchedAt = nil
			}
		}
		return nil
	})
}

// ClearShows empties memory and resets the loading and error state. Called
// on sign-out, before another identity's data may load.
func (s *Store) ClearShows() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shows = nil
	s.loaded = false
	s.lastErr = nil
}

// mutate applies fn to a copy of one tracked show, swaps the copy into
// memory, then overwrites the record at the gateway. The store lock is held
// across the write, which is the serialization policy for concurrent
// mutations on the same show.
func (s *Store) mutate(ctx context.Context, showID int, fn func(*models.TrackedShow) error) error {
	if s.userID == uuid.Nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(showID)
	if idx < 0 {
		return ErrShowNotFound
	}

	updated := s.shows[idx].Clone()
	if err := fn(&updated); err != nil {
		return err
	}

	s.shows[idx] = updated

	if err := s.gateway.UpdateShow(ctx, s.userID, updated); err != nil {
		s.lastErr = err
		s.logger.Printf("Failed to persist show %d: %v", showID, err)
		s.reconcile(ctx, showID)
		return fmt.Errorf("failed to persist show: %w", err)
	}
	return nil
}

// reconcile re-reads one record after a failed write so memory converges on
// whatever the gateway actually holds. Caller holds the lock.
func (s *Store) reconcile(ctx context.Context, showID int) {
	idx := s.indexOf(showID)
	if idx < 0 {
		return
	}

	stored, err := s.gateway.GetShow(ctx, s.userID, showID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.shows = append(s.shows[:idx], s.shows[idx+1:]...)
			return
		}
		// Re-read failed too; memory stays ahead until the next LoadShows.
		s.logger.Printf("Failed to reconcile show %d: %v", showID, err)
		return
	}
	s.shows[idx] = *stored
}

func (s *Store) indexOf(showID int) int {
	for i := range s.shows {
		if s.shows[i].ID == showID {
			return i
		}
	}
	return -1
}

func (s *Store) timestamp() *int64 {
	ms := s.now().UnixMilli()
	return &ms
}

func findEpisode(show *models.TrackedShow, episodeID int) *models.Episode {
	for i := range show.Episodes {
		if show.Episodes[i].ID == episodeID {
			return &show.Episodes[i]
		}
	}
	return nil
}
