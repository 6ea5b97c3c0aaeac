package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/calewis/showtrack/internal/services"
)

// CatalogHandler handles TVMaze catalog requests
type CatalogHandler struct {
	catalogService *services.TVMazeService
	logger         *log.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *services.TVMazeService, logger *log.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// Search handles GET /api/catalog/search. An empty query returns an empty
// result set without hitting the catalog.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	shows, err := h.catalogService.SearchShows(r.Context(), query)
	if err != nil {
		h.logger.Printf("Failed to search catalog: %v", err)
		http.Error(w, `{"error":"Failed to search shows"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shows)
}

// Episodes handles GET /api/catalog/shows/{id}/episodes
func (h *CatalogHandler) Episodes(w http.ResponseWriter, r *http.Request) {
	showID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"Invalid show ID"}`, http.StatusBadRequest)
		return
	}

	episodes, err := h.catalogService.GetEpisodes(r.Context(), showID)
	if err != nil {
		h.logger.Printf("Failed to fetch episodes: %v", err)
		http.Error(w, `{"error":"Failed to fetch episodes"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(episodes)
}
