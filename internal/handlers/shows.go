package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/calewis/showtrack/internal/middleware"
	"github.com/calewis/showtrack/internal/models"
	"github.com/calewis/showtrack/internal/store"
	"github.com/calewis/showtrack/internal/views"
)

// ShowHandler handles library requests: listing the classified library and
// every mutation on tracked shows and their episodes.
type ShowHandler struct {
	stores *store.Manager
	logger *log.Logger
}

// NewShowHandler creates a new show handler
func NewShowHandler(stores *store.Manager, logger *log.Logger) *ShowHandler {
	return &ShowHandler{
		stores: stores,
		logger: logger,
	}
}

// userStore resolves the signed-in user's store, loading it on first use.
func (h *ShowHandler) userStore(w http.ResponseWriter, r *http.Request) *store.Store {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return nil
	}

	st := h.stores.Get(userID)
	if err := st.EnsureLoaded(r.Context()); err != nil {
		h.logger.Printf("Failed to load shows: %v", err)
		http.Error(w, `{"error":"Failed to load shows"}`, http.StatusInternalServerError)
		return nil
	}
	return st
}

// List handles GET /api/shows. The library is filtered, classified into the
// three watch categories, and each category sorted by the requested key.
func (h *ShowHandler) List(w http.ResponseWriter, r *http.Request) {
	st := h.userStore(w, r)
	if st == nil {
		return
	}

	query := r.URL.Query()

	state := views.SortState{
		Key:  views.SortKey(query.Get("sort")),
		Desc: query.Get("dir") != "asc",
	}
	if !state.Key.Valid() {
		state.Key = views.SortLastWatched
	}

	shows := views.Filter(st.Shows(), query.Get("query"))
	groups := views.Partition(shows)
	groups.Unwatched = views.SortShows(groups.Unwatched, state.Key, state.Desc)
	groups.InProgress = views.SortShows(groups.InProgress, state.Key, state.Desc)
	groups.Completed = views.SortShows(groups.Completed, state.Key, state.Desc)

	// The applied sort state is echoed so clients can derive the next state
	// with SortState.Select when a column is re-selected.
	resp := struct {
		models.ShowGroups
		Sort views.SortState `json:"sort"`
	}{groups, state}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Create handles POST /api/shows
func (h *ShowHandler) Create(w http.ResponseWriter, r *http.Request) {
	st := h.userStore(w, r)
	if st == nil {
		return
	}

	var input models.AddShowInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if input.ID == 0 || input.Name == "" {
		http.Error(w, `{"error":"Show id and name are required"}`, http.StatusBadRequest)
		return
	}

	show := models.Show{
		ID:      input.ID,
		Name:    input.Name,
		Image:   input.Image,
		Summary: input.Summary,
	}

	if err := st.AddShow(r.Context(), show); err != nil {
		h.logger.Printf("Failed to add show: %v", err)
		http.Error(w, `{"error":"Failed to add show"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Show added to your library!",
	})
}

// Delete handles DELETE /api/shows/{id}
func (h *ShowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	st := h.userStore(w, r)
	if st == nil {
		return
	}

	showID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"Invalid show ID"}`, http.StatusBadRequest)
		return
	}

	if err := st.DeleteShow(r.Context(), showID); err != nil {
		h.logger.Printf("Failed to delete show: %v", err)
		http.Error(w, `{"error":"Failed to delete show"}`, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleEpisode handles POST /api/shows/{id}/episodes/{episodeId}/toggle
func (h *ShowHandler) ToggleEpisode(w http.ResponseWriter, r *http.Request) {
	h.episodeMutation(w, r, func(st *store.Store, showID, episodeID int) error {
		return st.ToggleEpisodeWatched(r.Context(), showID, episodeID)
	})
}

// WatchUntil handles POST /api/shows/{id}/episodes/{episodeId}/watch-until
func (h *ShowHandler) WatchUntil(w http.ResponseWriter, r *http.Request) {
	h.episodeMutation(w, r, func(st *store.Store, showID, episodeID int) error {
		return st.WatchUntilEpisode(r.Context(), showID, episodeID)
	})
}

// UpdateNote handles PUT /api/shows/{id}/episodes/{episodeId}/note
func (h *ShowHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var input models.UpdateNoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	h.episodeMutation(w, r, func(st *store.Store, showID, episodeID int) error {
		return st.UpdateEpisodeNote(r.Context(), showID, episodeID, input.Note)
	})
}

// SetSeason handles PUT /api/shows/{id}/season
func (h *ShowHandler) SetSeason(w http.ResponseWriter, r *http.Request) {
	st := h.userStore(w, r)
	if st == nil {
		return
	}

	showID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"Invalid show ID"}`, http.StatusBadRequest)
		return
	}

	var input models.SetSeasonInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if input.Season < 1 {
		http.Error(w, `{"error":"Season must be a positive number"}`, http.StatusBadRequest)
		return
	}

	if err := st.SetCurrentSeason(r.Context(), showID, input.Season); err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkWatched handles POST /api/shows/{id}/watched
func (h *ShowHandler) MarkWatched(w http.ResponseWriter, r *http.Request) {
	st := h.userStore(w, r)
	if st == nil {
		return
	}

	showID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"Invalid show ID"}`, http.StatusBadRequest)
		return
	}

	var input models.MarkWatchedInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := st.MarkAllEpisodesWatched(r.Context(), showID, input.Season, input.Watched); err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// episodeMutation parses the show and episode path values and runs one
// store mutator against them.
func (h *ShowHandler) episodeMutation(w http.ResponseWriter, r *http.Request, fn func(st *store.Store, showID, episodeID int) error) {
	st := h.userStore(w, r)
	if st == nil {
		return
	}

	showID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"Invalid show ID"}`, http.StatusBadRequest)
		return
	}

	episodeID, err := strconv.Atoi(r.PathValue("episodeId"))
	if err != nil {
		http.Error(w, `{"error":"Invalid episode ID"}`, http.StatusBadRequest)
		return
	}

	if err := fn(st, showID, episodeID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ShowHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrShowNotFound):
		http.Error(w, `{"error":"Show not found"}`, http.StatusNotFound)
	case errors.Is(err, store.ErrEpisodeNotFound):
		http.Error(w, `{"error":"Episode not found"}`, http.StatusNotFound)
	default:
		h.logger.Printf("Show mutation failed: %v", err)
		http.Error(w, `{"error":"Failed to update show"}`, http.StatusInternalServerError)
	}
}
