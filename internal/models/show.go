package models

import (
	"sort"

	"github.com/google/uuid"
)

// ShowImage holds the two poster resolutions the catalog provides
type ShowImage struct {
	Medium   string `json:"medium"`
	Original string `json:"original"`
}

// Show represents a show as returned by the catalog. Immutable once fetched.
type Show struct {
	ID      int       `json:"id"`
	Name    string    `json:"name"`
	Image   ShowImage `json:"image"`
	Summary string    `json:"summary"`
}

// Episode represents a single episode of a tracked show.
//
// WatchedAt is a Unix timestamp in milliseconds and is set if and only if
// Watched is true. Note distinguishes "absent" (nil) from an empty note.
type Episode struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Season    int     `json:"season"`
	Number    int     `json:"number"`
	Summary   string  `json:"summary"`
	Watched   bool    `json:"watched"`
	Note      *string `json:"note,omitempty"`
	WatchedAt *int64  `json:"watchedAt,omitempty"`
}

// TrackedShow is a show in a user's library: the catalog show plus the
// user's per-episode watch state and the season the user is currently on.
type TrackedShow struct {
	Show
	UserID        uuid.UUID `json:"userId"`
	Episodes      []Episode `json:"episodes"`
	CurrentSeason int       `json:"currentSeason"`
}

// Clone returns a deep copy so callers can mutate without sharing episodes.
func (s TrackedShow) Clone() TrackedShow {
	out := s
	out.Episodes = make([]Episode, len(s.Episodes))
	copy(out.Episodes, s.Episodes)
	for i, ep := range s.Episodes {
		if ep.Note != nil {
			n := *ep.Note
			out.Episodes[i].Note = &n
		}
		if ep.WatchedAt != nil {
			t := *ep.WatchedAt
			out.Episodes[i].WatchedAt = &t
		}
	}
	return out
}

// WatchedCount returns the number of watched episodes.
func (s TrackedShow) WatchedCount() int {
	count := 0
	for _, ep := range s.Episodes {
		if ep.Watched {
			count++
		}
	}
	return count
}

// Seasons returns the distinct season numbers present in the episode set,
// in ascending order.
func (s TrackedShow) Seasons() []int {
	seen := make(map[int]bool)
	var seasons []int
	for _, ep := range s.Episodes {
		if !seen[ep.Season] {
			seen[ep.Season] = true
			seasons = append(seasons, ep.Season)
		}
	}
	sort.Ints(seasons)
	return seasons
}

// AddShowInput represents the input for adding a show to the library
type AddShowInput struct {
	ID      int       `json:"id" validate:"required"`
	Name    string    `json:"name" validate:"required"`
	Image   ShowImage `json:"image"`
	Summary string    `json:"summary"`
}

// UpdateNoteInput represents the input for replacing an episode note
type UpdateNoteInput struct {
	Note string `json:"note"`
}

// SetSeasonInput represents the input for moving the current-season pointer
type SetSeasonInput struct {
	Season int `json:"season" validate:"required,min=1"`
}

// MarkWatchedInput represents the input for bulk watched updates
type MarkWatchedInput struct {
	Watched bool `json:"watched"`
	Season  *int `json:"season,omitempty"`
}

// ShowGroups is the classified library returned by the list endpoint
type ShowGroups struct {
	Unwatched  []TrackedShow `json:"unwatched"`
	InProgress []TrackedShow `json:"inProgress"`
	Completed  []TrackedShow `json:"completed"`
}
