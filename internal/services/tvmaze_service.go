package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"

	"github.com/calewis/showtrack/internal/models"
)

// TVMazeService handles interactions with the TVMaze catalog API. The
// catalog is read-only; responses are cached for a short TTL and transient
// failures are retried with exponential backoff.
type TVMazeService struct {
	client  *http.Client
	baseURL string
	cache   *cache.Cache
	backOff func() backoff.BackOff
}

// TVMazeConfig holds TVMaze service configuration
type TVMazeConfig struct {
	BaseURL  string
	CacheTTL time.Duration
}

// NewTVMazeService creates a new TVMaze catalog client
func NewTVMazeService(cfg TVMazeConfig) *TVMazeService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tvmaze.com"
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	return &TVMazeService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		cache:   cache.New(ttl, 2*ttl),
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 15 * time.Second
			return b
		},
	}
}

// tvmazeImage mirrors the catalog's image object, which may be null
type tvmazeImage struct {
	Medium   string `json:"medium"`
	Original string `json:"original"`
}

// tvmazeShow mirrors the show shape returned by the catalog
type tvmazeShow struct {
	ID      int          `json:"id"`
	Name    string       `json:"name"`
	Summary string       `json:"summary"`
	Image   *tvmazeImage `json:"image"`
}

// tvmazeSearchResult is one entry of a /search/shows response
type tvmazeSearchResult struct {
	Score float64    `json:"score"`
	Show  tvmazeShow `json:"show"`
}

// tvmazeEpisode mirrors the episode shape returned by the catalog. Watch
// state is not supplied by the catalog and is initialized by the caller.
type tvmazeEpisode struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Season  int    `json:"season"`
	Number  int    `json:"number"`
	Summary string `json:"summary"`
}

// doRequest performs a GET against the catalog, retrying transient failures.
// Client errors (4xx) are permanent and returned immediately.
func (s *TVMazeService) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	url := fmt.Sprintf("%s%s", s.baseURL, endpoint)

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		q := req.URL.Query()
		for key, value := range params {
			q.Add(key, value)
		}
		req.URL.RawQuery = q.Encode()

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("tvmaze API error: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("tvmaze API error: status %d, body: %s", resp.StatusCode, string(data)))
		}

		body = data
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(s.backOff(), ctx)); err != nil {
		return nil, err
	}

	return body, nil
}

// SearchShows performs a free-text search against the catalog. An empty
// query yields no network call and no results.
func (s *TVMazeService) SearchShows(ctx context.Context, query string) ([]models.Show, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Show{}, nil
	}

	cacheKey := "search:" + strings.ToLower(query)
	if cached, found := s.cache.Get(cacheKey); found {
		return cloneShows(cached.([]models.Show)), nil
	}

	body, err := s.doRequest(ctx, "/search/shows", map[string]string{"q": query})
	if err != nil {
		return nil, err
	}

	var results []tvmazeSearchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search results: %w", err)
	}

	shows := make([]models.Show, 0, len(results))
	for _, result := range results {
		shows = append(shows, mapShow(result.Show))
	}

	s.cache.Set(cacheKey, shows, cache.DefaultExpiration)

	return cloneShows(shows), nil
}

// GetEpisodes retrieves the full episode list for a show. Episodes come back
// unwatched with no note and no timestamp.
func (s *TVMazeService) GetEpisodes(ctx context.Context, showID int) ([]models.Episode, error) {
	cacheKey := fmt.Sprintf("episodes:%d", showID)
	if cached, found := s.cache.Get(cacheKey); found {
		return cloneEpisodes(cached.([]models.Episode)), nil
	}

	body, err := s.doRequest(ctx, fmt.Sprintf("/shows/%d/episodes", showID), nil)
	if err != nil {
		return nil, err
	}

	var results []tvmazeEpisode
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal episodes: %w", err)
	}

	episodes := make([]models.Episode, 0, len(results))
	for _, result := range results {
		episodes = append(episodes, models.Episode{
			ID:      result.ID,
			Name:    result.Name,
			Season:  result.Season,
			Number:  result.Number,
			Summary: result.Summary,
		})
	}

	s.cache.Set(cacheKey, episodes, cache.DefaultExpiration)

	return cloneEpisodes(episodes), nil
}

// Cache entries are shared across callers. Both lookup paths hand out a fresh
// slice so an in-place write by one caller never reaches the cache or a later
// caller's result.
func cloneShows(in []models.Show) []models.Show {
	out := make([]models.Show, len(in))
	copy(out, in)
	return out
}

// Element copies are shallow: catalog episodes never carry a note or a
// watchedAt pointer.
func cloneEpisodes(in []models.Episode) []models.Episode {
	out := make([]models.Episode, len(in))
	copy(out, in)
	return out
}

func mapShow(in tvmazeShow) models.Show {
	show := models.Show{
		ID:      in.ID,
		Name:    in.Name,
		Summary: in.Summary,
	}
	if in.Image != nil {
		show.Image = models.ShowImage{
			Medium:   in.Image.Medium,
			Original: in.Image.Original,
		}
	}
	return show
}
