package store

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/calewis/showtrack/internal/models"
	"github.com/calewis/showtrack/internal/views"
)

// fakeGateway keeps records in memory for a single user, in the shape the
// real gateway stores them.
type fakeGateway struct {
	records    map[int]models.TrackedShow
	failUpdate bool
	addCalls   int
	updates    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{records: make(map[int]models.TrackedShow)}
}

func (g *fakeGateway) GetShows(ctx context.Context, userID uuid.UUID) ([]models.TrackedShow, error) {
	var shows []models.TrackedShow
	for _, show := range g.records {
		shows = append(shows, show.Clone())
	}
	return shows, nil
}

func (g *fakeGateway) GetShow(ctx context.Context, userID uuid.UUID, showID int) (*models.TrackedShow, error) {
	show, ok := g.records[showID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := show.Clone()
	return &clone, nil
}

func (g *fakeGateway) AddShow(ctx context.Context, userID uuid.UUID, show models.Show, episodes []models.Episode) error {
	g.addCalls++
	g.records[show.ID] = models.TrackedShow{
		Show:          show,
		UserID:        userID,
		Episodes:      episodes,
		CurrentSeason: 1,
	}
	return nil
}

func (g *fakeGateway) UpdateShow(ctx context.Context, userID uuid.UUID, show models.TrackedShow) error {
	if g.failUpdate {
		return errors.New("write refused")
	}
	if _, ok := g.records[show.ID]; !ok {
		return pgx.ErrNoRows
	}
	g.updates++
	g.records[show.ID] = show.Clone()
	return nil
}

func (g *fakeGateway) DeleteShow(ctx context.Context, userID uuid.UUID, showID int) error {
	delete(g.records, showID)
	return nil
}

type fakeCatalog struct {
	episodes map[int][]models.Episode
	err      error
	calls    int
}

func (c *fakeCatalog) GetEpisodes(ctx context.Context, showID int) ([]models.Episode, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.episodes[showID], nil
}

// twoSeasons builds a 2x3 episode list: S1E1..E3 (IDs 101..103) and
// S2E1..E3 (IDs 201..203).
func twoSeasons() []models.Episode {
	var eps []models.Episode
	for season := 1; season <= 2; season++ {
		for number := 1; number <= 3; number++ {
			eps = append(eps, models.Episode{
				ID:     season*100 + number,
				Name:   "Episode",
				Season: season,
				Number: number,
			})
		}
	}
	return eps
}

func testShow(id int, name string) models.Show {
	return models.Show{ID: id, Name: name, Summary: "<p>A show.</p>"}
}

func newTestStore(t *testing.T, gateway *fakeGateway, catalog *fakeCatalog) *Store {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	return New(uuid.New(), gateway, catalog, logger)
}

func addTestShow(t *testing.T, st *Store, gateway *fakeGateway, catalog *fakeCatalog, id int, name string) {
	t.Helper()
	catalog.episodes[id] = twoSeasons()
	if err := st.AddShow(context.Background(), testShow(id, name)); err != nil {
		t.Fatalf("add show: %v", err)
	}
}

func findByID(t *testing.T, shows []models.TrackedShow, id int) models.TrackedShow {
	t.Helper()
	for _, show := range shows {
		if show.ID == id {
			return show
		}
	}
	t.Fatalf("show %d not in store", id)
	return models.TrackedShow{}
}

func episodeByID(t *testing.T, show models.TrackedShow, id int) models.Episode {
	t.Helper()
	for _, ep := range show.Episodes {
		if ep.ID == id {
			return ep
		}
	}
	t.Fatalf("episode %d not in show %d", id, show.ID)
	return models.Episode{}
}

func TestAddShow(t *testing.T) {
	t.Run("Creates Record And Memory Entry", func(t *testing.T) {
		gateway := newFakeGateway()
		catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
		st := newTestStore(t, gateway, catalog)

		addTestShow(t, st, gateway, catalog, 1, "Banshee")

		stored, ok := gateway.records[1]
		if !ok {
			t.Fatal("expected record in gateway")
		}
		if stored.CurrentSeason != 1 {
			t.Errorf("expected currentSeason 1, got %d", stored.CurrentSeason)
		}
		if len(stored.Episodes) != 6 {
			t.Fatalf("expected 6 episodes, got %d", len(stored.Episodes))
		}
		for _, ep := range stored.Episodes {
			if ep.Watched || ep.WatchedAt != nil || ep.Note != nil {
				t.Errorf("episode %d not initialized unwatched: %+v", ep.ID, ep)
			}
		}

		shows := st.Shows()
		if len(shows) != 1 || shows[0].ID != 1 {
			t.Fatalf("expected show in memory, got %v", shows)
		}
	})

	t.Run("Catalog Failure Creates No Partial Record", func(t *testing.T) {
		gateway := newFakeGateway()
		catalog := &fakeCatalog{err: errors.New("catalog down")}
		st := newTestStore(t, gateway, catalog)

		err := st.AddShow(context.Background(), testShow(1, "Banshee"))
		if err == nil {
			t.Fatal("expected error")
		}
		if gateway.addCalls != 0 {
			t.Error("expected no gateway write after catalog failure")
		}
		if len(st.Shows()) != 0 {
			t.Error("expected no show in memory")
		}
		if st.Err() == nil {
			t.Error("expected store error flag to be set")
		}
	})

	t.Run("No-Op Without User", func(t *testing.T) {
		gateway := newFakeGateway()
		catalog := &fakeCatalog{episodes: map[int][]models.Episode{1: twoSeasons()}}
		logger := log.New(io.Discard, "", 0)
		st := New(uuid.Nil, gateway, catalog, logger)

		if err := st.AddShow(context.Background(), testShow(1, "Banshee")); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if catalog.calls != 0 || gateway.addCalls != 0 {
			t.Error("expected no catalog or gateway calls without a user")
		}
	})
}

func TestToggleEpisodeWatched(t *testing.T) {
	gateway := newFakeGateway()
	catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
	st := newTestStore(t, gateway, catalog)
	addTestShow(t, st, gateway, catalog, 1, "Banshee")

	t.Run("Stamps WatchedAt On Watch", func(t *testing.T) {
		before := time.Now().UnixMilli()
		if err := st.ToggleEpisodeWatched(context.Background(), 1, 102); err != nil {
			t.Fatalf("toggle: %v", err)
		}

		ep := episodeByID(t, findByID(t, st.Shows(), 1), 102)
		if !ep.Watched {
			t.Fatal("expected watched")
		}
		if ep.WatchedAt == nil || *ep.WatchedAt < before {
			t.Fatalf("expected watchedAt >= %d, got %v", before, ep.WatchedAt)
		}

		// The whole record was written through.
		stored := episodeByID(t, gateway.records[1], 102)
		if !stored.Watched || stored.WatchedAt == nil {
			t.Error("expected persisted record to carry the watch state")
		}
	})

	t.Run("Clears WatchedAt On Unwatch", func(t *testing.T) {
		if err := st.ToggleEpisodeWatched(context.Background(), 1, 102); err != nil {
			t.Fatalf("toggle: %v", err)
		}

		ep := episodeByID(t, findByID(t, st.Shows(), 1), 102)
		if ep.Watched {
			t.Fatal("expected unwatched after double toggle")
		}
		if ep.WatchedAt != nil {
			t.Fatalf("expected watchedAt cleared, got %d", *ep.WatchedAt)
		}
	})

	t.Run("Unknown Episode", func(t *testing.T) {
		err := st.ToggleEpisodeWatched(context.Background(), 1, 999)
		if !errors.Is(err, ErrEpisodeNotFound) {
			t.Fatalf("expected ErrEpisodeNotFound, got %v", err)
		}
	})

	t.Run("Unknown Show", func(t *testing.T) {
		err := st.ToggleEpisodeWatched(context.Background(), 42, 102)
		if !errors.Is(err, ErrShowNotFound) {
			t.Fatalf("expected ErrShowNotFound, got %v", err)
		}
	})
}

func TestWatchUntilEpisode(t *testing.T) {
	gateway := newFakeGateway()
	catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
	st := newTestStore(t, gateway, catalog)

	// Three seasons so there are episodes strictly after the target season.
	var eps []models.Episode
	for season := 1; season <= 3; season++ {
		for number := 1; number <= 4; number++ {
			eps = append(eps, models.Episode{ID: season*100 + number, Season: season, Number: number})
		}
	}
	catalog.episodes[1] = eps
	if err := st.AddShow(context.Background(), testShow(1, "Banshee")); err != nil {
		t.Fatalf("add show: %v", err)
	}

	// Pre-watch S1E1 at a fixed earlier time; it must keep that timestamp.
	fixed := time.UnixMilli(1_000)
	st.now = func() time.Time { return fixed }
	if err := st.ToggleEpisodeWatched(context.Background(), 1, 101); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	later := time.UnixMilli(2_000)
	st.now = func() time.Time { return later }

	// Target S2E3.
	if err := st.WatchUntilEpisode(context.Background(), 1, 203); err != nil {
		t.Fatalf("watch until: %v", err)
	}

	show := findByID(t, st.Shows(), 1)
	for _, ep := range show.Episodes {
		watchedExpected := ep.Season < 2 || (ep.Season == 2 && ep.Number <= 3)
		if ep.Watched != watchedExpected {
			t.Errorf("S%dE%d: watched=%v, expected %v", ep.Season, ep.Number, ep.Watched, watchedExpected)
		}
		if !watchedExpected && ep.WatchedAt != nil {
			t.Errorf("S%dE%d: unexpected watchedAt", ep.Season, ep.Number)
		}
	}

	if got := *episodeByID(t, show, 101).WatchedAt; got != 1_000 {
		t.Errorf("already-watched episode lost its timestamp: got %d", got)
	}
	if got := *episodeByID(t, show, 102).WatchedAt; got != 2_000 {
		t.Errorf("newly watched episode should carry the current time, got %d", got)
	}
}

func TestUpdateEpisodeNote(t *testing.T) {
	gateway := newFakeGateway()
	catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
	st := newTestStore(t, gateway, catalog)
	addTestShow(t, st, gateway, catalog, 1, "Banshee")

	if err := st.UpdateEpisodeNote(context.Background(), 1, 101, "slow start"); err != nil {
		t.Fatalf("update note: %v", err)
	}
	ep := episodeByID(t, findByID(t, st.Shows(), 1), 101)
	if ep.Note == nil || *ep.Note != "slow start" {
		t.Fatalf("expected note, got %v", ep.Note)
	}

	// An empty string is a valid note, distinct from no note at all.
	if err := st.UpdateEpisodeNote(context.Background(), 1, 101, ""); err != nil {
		t.Fatalf("update note: %v", err)
	}
	show := findByID(t, st.Shows(), 1)
	if ep := episodeByID(t, show, 101); ep.Note == nil || *ep.Note != "" {
		t.Fatalf("expected empty note, got %v", ep.Note)
	}
	if ep := episodeByID(t, show, 102); ep.Note != nil {
		t.Fatal("expected untouched episode to have no note")
	}
}

func TestSetCurrentSeason(t *testing.T) {
	gateway := newFakeGateway()
	catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
	st := newTestStore(t, gateway, catalog)
	addTestShow(t, st, gateway, catalog, 1, "Banshee")

	if err := st.SetCurrentSeason(context.Background(), 1, 2); err != nil {
		t.Fatalf("set season: %v", err)
	}
	if got := findByID(t, st.Shows(), 1).CurrentSeason; got != 2 {
		t.Fatalf("expected season 2, got %d", got)
	}

	// The pointer is caller-trusted: a season with no episodes sticks too.
	if err := st.SetCurrentSeason(context.Background(), 1, 99); err != nil {
		t.Fatalf("set season: %v", err)
	}
	if got := gateway.records[1].CurrentSeason; got != 99 {
		t.Fatalf("expected persisted season 99, got %d", got)
	}
}

func TestMarkAllEpisodesWatched(t *testing.T) {
	t.Run("Whole Show", func(t *testing.T) {
		gateway := newFakeGateway()
		catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
		st := newTestStore(t, gateway, catalog)
		addTestShow(t, st, gateway, catalog, 1, "Banshee")

		if err := st.MarkAllEpisodesWatched(context.Background(), 1, nil, true); err != nil {
			t.Fatalf("mark all: %v", err)
		}
		for _, ep := range findByID(t, st.Shows(), 1).Episodes {
			if !ep.Watched || ep.WatchedAt == nil {
				t.Errorf("episode %d not marked watched", ep.ID)
			}
		}
	})

	t.Run("Season Scoped Unmark", func(t *testing.T) {
		gateway := newFakeGateway()
		catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
		st := newTestStore(t, gateway, catalog)
		addTestShow(t, st, gateway, catalog, 1, "Banshee")

		fixed := time.UnixMilli(5_000)
		st.now = func() time.Time { return fixed }
		if err := st.MarkAllEpisodesWatched(context.Background(), 1, nil, true); err != nil {
			t.Fatalf("mark all: %v", err)
		}

		st.now = time.Now
		season := 1
		if err := st.MarkAllEpisodesWatched(context.Background(), 1, &season, false); err != nil {
			t.Fatalf("unmark season: %v", err)
		}

		for _, ep := range findByID(t, st.Shows(), 1).Episodes {
			if ep.Season == 1 {
				if ep.Watched || ep.WatchedAt != nil {
					t.Errorf("S1E%d should be cleared", ep.Number)
				}
			} else {
				if !ep.Watched || ep.WatchedAt == nil || *ep.WatchedAt != 5_000 {
					t.Errorf("S2E%d should keep its original timestamp", ep.Number)
				}
			}
		}
	})
}

func TestLoadShows(t *testing.T) {
	gateway := newFakeGateway()
	catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
	st := newTestStore(t, gateway, catalog)

	gateway.records[7] = models.TrackedShow{
		Show:          testShow(7, "Archer"),
		UserID:        st.UserID(),
		Episodes:      twoSeasons(),
		CurrentSeason: 1,
	}

	if err := st.LoadShows(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(st.Shows()) != 1 {
		t.Fatalf("expected 1 show, got %d", len(st.Shows()))
	}
	if !st.Loaded() {
		t.Fatal("expected loaded flag")
	}

	// EnsureLoaded does not reload an already-loaded store.
	gateway.records[8] = models.TrackedShow{Show: testShow(8, "Zoo"), UserID: st.UserID(), CurrentSeason: 1}
	if err := st.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("ensure loaded: %v", err)
	}
	if len(st.Shows()) != 1 {
		t.Fatal("EnsureLoaded should not reload")
	}

	// LoadShows replaces memory wholesale.
	if err := st.LoadShows(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(st.Shows()) != 2 {
		t.Fatalf("expected 2 shows after reload, got %d", len(st.Shows()))
	}
}

func TestClearShows(t *testing.T) {
	gateway := newFakeGateway()
	catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
	st := newTestStore(t, gateway, catalog)
	addTestShow(t, st, gateway, catalog, 1, "Banshee")

	st.ClearShows()

	if len(st.Shows()) != 0 {
		t.Error("expected empty memory")
	}
	if st.Loaded() {
		t.Error("expected loaded flag reset")
	}
	if st.Err() != nil {
		t.Error("expected error flag reset")
	}
	// Storage is untouched by a clear.
	if _, ok := gateway.records[1]; !ok {
		t.Error("expected record to survive ClearShows")
	}
}

func TestDeleteShow(t *testing.T) {
	gateway := newFakeGateway()
	catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
	st := newTestStore(t, gateway, catalog)
	addTestShow(t, st, gateway, catalog, 1, "Banshee")

	if err := st.DeleteShow(context.Background(), 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(st.Shows()) != 0 {
		t.Error("expected show removed from memory")
	}
	if _, ok := gateway.records[1]; ok {
		t.Error("expected record removed from gateway")
	}

	// Deleting a show that is already gone is not an error.
	if err := st.DeleteShow(context.Background(), 1); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

// TestTrackingLifecycle walks a show from added to completed the way a
// user would.
func TestTrackingLifecycle(t *testing.T) {
	gateway := newFakeGateway()
	catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
	st := newTestStore(t, gateway, catalog)
	addTestShow(t, st, gateway, catalog, 1, "Banshee")

	classify := func() views.Category {
		return views.Classify(findByID(t, st.Shows(), 1))
	}

	if got := classify(); got != views.CategoryUnwatched {
		t.Fatalf("expected unwatched after add, got %s", got)
	}

	// Toggle S1E2.
	if err := st.ToggleEpisodeWatched(context.Background(), 1, 102); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := classify(); got != views.CategoryInProgress {
		t.Fatalf("expected in-progress, got %s", got)
	}

	// Watch until S1E2: S1E1 and S1E2 watched, the rest untouched.
	if err := st.WatchUntilEpisode(context.Background(), 1, 102); err != nil {
		t.Fatalf("watch until: %v", err)
	}
	show := findByID(t, st.Shows(), 1)
	for _, ep := range show.Episodes {
		want := ep.Season == 1 && ep.Number <= 2
		if ep.Watched != want {
			t.Errorf("S%dE%d: watched=%v, expected %v", ep.Season, ep.Number, ep.Watched, want)
		}
	}

	if err := st.MarkAllEpisodesWatched(context.Background(), 1, nil, true); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if got := classify(); got != views.CategoryCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestFailedWriteReconciles(t *testing.T) {
	t.Run("Memory Converges On Stored Record", func(t *testing.T) {
		gateway := newFakeGateway()
		catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
		st := newTestStore(t, gateway, catalog)
		addTestShow(t, st, gateway, catalog, 1, "Banshee")

		gateway.failUpdate = true
		err := st.ToggleEpisodeWatched(context.Background(), 1, 101)
		if err == nil {
			t.Fatal("expected write error to surface")
		}
		if st.Err() == nil {
			t.Error("expected store error flag")
		}

		// The optimistic update was rolled back to the gateway's state.
		ep := episodeByID(t, findByID(t, st.Shows(), 1), 101)
		if ep.Watched || ep.WatchedAt != nil {
			t.Error("expected memory to converge on the stored record")
		}
	})

	t.Run("Record Deleted Behind The Store", func(t *testing.T) {
		gateway := newFakeGateway()
		catalog := &fakeCatalog{episodes: map[int][]models.Episode{}}
		st := newTestStore(t, gateway, catalog)
		addTestShow(t, st, gateway, catalog, 1, "Banshee")

		gateway.failUpdate = true
		delete(gateway.records, 1)

		if err := st.ToggleEpisodeWatched(context.Background(), 1, 101); err == nil {
			t.Fatal("expected write error to surface")
		}
		if len(st.Shows()) != 0 {
			t.Error("expected vanished record to be dropped from memory")
		}
	})
}
