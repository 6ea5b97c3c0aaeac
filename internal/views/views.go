// Package views contains the pure, derived read models over a user's
// tracked shows: classification into watch categories, sorting, and text
// filtering. Nothing here mutates a show or touches the network.
package views

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/calewis/showtrack/internal/models"
)

// Category is a watch-state bucket. Every show belongs to exactly one.
type Category string

const (
	CategoryUnwatched  Category = "unwatched"
	CategoryInProgress Category = "in-progress"
	CategoryCompleted  Category = "completed"
)

// Classify buckets a show by its episodes' watched flags. A show with zero
// episodes counts as completed: "every episode watched" holds vacuously.
func Classify(show models.TrackedShow) Category {
	watched := show.WatchedCount()
	switch {
	case watched == len(show.Episodes):
		return CategoryCompleted
	case watched == 0:
		return CategoryUnwatched
	default:
		return CategoryInProgress
	}
}

// Partition splits shows into the three categories, preserving input order
// within each one.
func Partition(shows []models.TrackedShow) models.ShowGroups {
	var groups models.ShowGroups
	for _, show := range shows {
		switch Classify(show) {
		case CategoryCompleted:
			groups.Completed = append(groups.Completed, show)
		case CategoryUnwatched:
			groups.Unwatched = append(groups.Unwatched, show)
		default:
			groups.InProgress = append(groups.InProgress, show)
		}
	}
	return groups
}

// SortKey selects the ordering applied within a category.
type SortKey string

const (
	SortAlphabetical SortKey = "alphabetical"
	SortProgress     SortKey = "progress"
	SortLastWatched  SortKey = "lastWatched"
)

// Valid reports whether the key is one of the supported sort keys.
func (k SortKey) Valid() bool {
	return k == SortAlphabetical || k == SortProgress || k == SortLastWatched
}

// SortState is the active sort key plus direction. The list endpoint echoes
// the state it applied so clients can feed it back through Select.
type SortState struct {
	Key  SortKey `json:"key"`
	Desc bool    `json:"desc"`
}

// Select returns the state after choosing a key: re-selecting the active key
// flips the direction, a new key resets to descending.
func (s SortState) Select(key SortKey) SortState {
	if key == s.Key {
		return SortState{Key: key, Desc: !s.Desc}
	}
	return SortState{Key: key, Desc: true}
}

// Progress returns the watched fraction of a show's episodes. A show with
// zero episodes is complete, so its progress is 1.
func Progress(show models.TrackedShow) float64 {
	if len(show.Episodes) == 0 {
		return 1
	}
	return float64(show.WatchedCount()) / float64(len(show.Episodes))
}

// LastWatched returns the newest watchedAt timestamp across a show's
// watched episodes, or 0 when nothing has been watched.
func LastWatched(show models.TrackedShow) int64 {
	var max int64
	for _, ep := range show.Episodes {
		if ep.Watched && ep.WatchedAt != nil && *ep.WatchedAt > max {
			max = *ep.WatchedAt
		}
	}
	return max
}

// SortShows returns a sorted copy of shows. Ascending order is A-to-Z for
// names, lowest-first for progress, and oldest-first for lastWatched; desc
// reverses it. Name comparison is locale aware and ignores case.
func SortShows(shows []models.TrackedShow, key SortKey, desc bool) []models.TrackedShow {
	out := make([]models.TrackedShow, len(shows))
	copy(out, shows)

	var less func(a, b models.TrackedShow) bool
	switch key {
	case SortProgress:
		less = func(a, b models.TrackedShow) bool {
			return Progress(a) < Progress(b)
		}
	case SortLastWatched:
		less = func(a, b models.TrackedShow) bool {
			return LastWatched(a) < LastWatched(b)
		}
	default:
		collator := collate.New(language.English, collate.IgnoreCase)
		less = func(a, b models.TrackedShow) bool {
			return collator.CompareString(a.Name, b.Name) < 0
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// Filter returns the shows whose name contains the query, ignoring case.
// It runs before classification. An empty query keeps everything.
func Filter(shows []models.TrackedShow, query string) []models.TrackedShow {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return shows
	}

	var out []models.TrackedShow
	for _, show := range shows {
		if strings.Contains(strings.ToLower(show.Name), query) {
			out = append(out, show)
		}
	}
	return out
}
