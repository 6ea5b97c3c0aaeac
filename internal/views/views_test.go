package views

import (
	"testing"

	"github.com/calewis/showtrack/internal/models"
)

func show(id int, name string, episodes ...models.Episode) models.TrackedShow {
	return models.TrackedShow{
		Show:          models.Show{ID: id, Name: name},
		Episodes:      episodes,
		CurrentSeason: 1,
	}
}

func ep(id int, watched bool, watchedAt int64) models.Episode {
	e := models.Episode{ID: id, Season: 1, Number: id, Watched: watched}
	if watched {
		e.WatchedAt = &watchedAt
	}
	return e
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		show models.TrackedShow
		want Category
	}{
		{"All Unwatched", show(1, "a", ep(1, false, 0), ep(2, false, 0)), CategoryUnwatched},
		{"Some Watched", show(1, "a", ep(1, true, 10), ep(2, false, 0)), CategoryInProgress},
		{"All Watched", show(1, "a", ep(1, true, 10), ep(2, true, 20)), CategoryCompleted},
		// "every episode watched" holds vacuously for an empty episode set.
		{"Zero Episodes", show(1, "a"), CategoryCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.show); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPartitionIsExact(t *testing.T) {
	shows := []models.TrackedShow{
		show(1, "a", ep(1, false, 0)),
		show(2, "b", ep(1, true, 10), ep(2, false, 0)),
		show(3, "c", ep(1, true, 10)),
		show(4, "d"),
		show(5, "e", ep(1, false, 0), ep(2, false, 0)),
	}

	groups := Partition(shows)

	total := len(groups.Unwatched) + len(groups.InProgress) + len(groups.Completed)
	if total != len(shows) {
		t.Fatalf("partition dropped or duplicated shows: %d != %d", total, len(shows))
	}

	seen := make(map[int]int)
	for _, group := range [][]models.TrackedShow{groups.Unwatched, groups.InProgress, groups.Completed} {
		for _, s := range group {
			seen[s.ID]++
		}
	}
	for _, s := range shows {
		if seen[s.ID] != 1 {
			t.Errorf("show %d appears %d times across categories", s.ID, seen[s.ID])
		}
	}
}

func TestSortShows(t *testing.T) {
	t.Run("Alphabetical", func(t *testing.T) {
		shows := []models.TrackedShow{show(1, "Banshee"), show(2, "Archer"), show(3, "Zoo")}

		asc := SortShows(shows, SortAlphabetical, false)
		for i, want := range []string{"Archer", "Banshee", "Zoo"} {
			if asc[i].Name != want {
				t.Fatalf("asc[%d] = %s, want %s", i, asc[i].Name, want)
			}
		}

		desc := SortShows(shows, SortAlphabetical, true)
		for i, want := range []string{"Zoo", "Banshee", "Archer"} {
			if desc[i].Name != want {
				t.Fatalf("desc[%d] = %s, want %s", i, desc[i].Name, want)
			}
		}
	})

	t.Run("Alphabetical Ignores Case", func(t *testing.T) {
		shows := []models.TrackedShow{show(1, "banshee"), show(2, "Archer")}
		asc := SortShows(shows, SortAlphabetical, false)
		if asc[0].Name != "Archer" {
			t.Fatalf("expected Archer first, got %s", asc[0].Name)
		}
	})

	t.Run("Progress", func(t *testing.T) {
		half := show(1, "half", ep(1, true, 10), ep(2, false, 0))
		none := show(2, "none", ep(1, false, 0))
		full := show(3, "full", ep(1, true, 10))

		desc := SortShows([]models.TrackedShow{half, none, full}, SortProgress, true)
		for i, want := range []string{"full", "half", "none"} {
			if desc[i].Name != want {
				t.Fatalf("desc[%d] = %s, want %s", i, desc[i].Name, want)
			}
		}
	})

	t.Run("LastWatched Treats Unwatched As Zero", func(t *testing.T) {
		old := show(1, "old", ep(1, true, 100))
		fresh := show(2, "fresh", ep(1, true, 200))
		never := show(3, "never", ep(1, false, 0))

		desc := SortShows([]models.TrackedShow{old, never, fresh}, SortLastWatched, true)
		for i, want := range []string{"fresh", "old", "never"} {
			if desc[i].Name != want {
				t.Fatalf("desc[%d] = %s, want %s", i, desc[i].Name, want)
			}
		}
	})

	t.Run("Does Not Mutate Input", func(t *testing.T) {
		shows := []models.TrackedShow{show(1, "Zoo"), show(2, "Archer")}
		SortShows(shows, SortAlphabetical, false)
		if shows[0].Name != "Zoo" {
			t.Fatal("input slice was reordered")
		}
	})
}

func TestSortStateSelect(t *testing.T) {
	state := SortState{Key: SortLastWatched, Desc: true}

	// Re-selecting the active key flips direction.
	state = state.Select(SortLastWatched)
	if state.Desc {
		t.Fatal("expected ascending after re-select")
	}
	state = state.Select(SortLastWatched)
	if !state.Desc {
		t.Fatal("expected descending after second re-select")
	}

	// A new key resets to descending.
	state = state.Select(SortLastWatched) // ascending again
	state = state.Select(SortAlphabetical)
	if state.Key != SortAlphabetical || !state.Desc {
		t.Fatalf("expected new key descending, got %+v", state)
	}
}

func TestFilter(t *testing.T) {
	shows := []models.TrackedShow{show(1, "Banshee"), show(2, "Archer"), show(3, "Better Call Saul")}

	t.Run("Case Insensitive Substring", func(t *testing.T) {
		got := Filter(shows, "cALL")
		if len(got) != 1 || got[0].Name != "Better Call Saul" {
			t.Fatalf("expected Better Call Saul, got %v", got)
		}
	})

	t.Run("Empty Query Keeps Everything", func(t *testing.T) {
		if got := Filter(shows, "  "); len(got) != len(shows) {
			t.Fatalf("expected all shows, got %d", len(got))
		}
	})

	t.Run("No Match", func(t *testing.T) {
		if got := Filter(shows, "wire"); len(got) != 0 {
			t.Fatalf("expected no shows, got %d", len(got))
		}
	})
}

func TestProgress(t *testing.T) {
	if got := Progress(show(1, "a", ep(1, true, 10), ep(2, false, 0))); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
	// A zero-episode show is complete.
	if got := Progress(show(1, "a")); got != 1 {
		t.Errorf("expected 1 for zero episodes, got %f", got)
	}
}
