package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calewis/showtrack/internal/models"
)

// ShowService is the persistence gateway for tracked shows. Each show is
// stored as a whole JSONB document keyed by (userId, showId); every write
// overwrites the full record. There are no field-level patches and no
// optimistic-concurrency checks.
type ShowService struct {
	db *pgxpool.Pool
}

// NewShowService creates a new ShowService
func NewShowService(db *pgxpool.Pool) *ShowService {
	return &ShowService{db: db}
}

// GetShows retrieves all tracked shows owned by a user. Order is unspecified.
func (s *ShowService) GetShows(ctx context.Context, userID uuid.UUID) ([]models.TrackedShow, error) {
	query := `SELECT doc FROM "TrackedShow" WHERE "userId" = $1`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shows: %w", err)
	}
	defer rows.Close()

	var shows []models.TrackedShow
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan show: %w", err)
		}

		var show models.TrackedShow
		if err := json.Unmarshal(doc, &show); err != nil {
			return nil, fmt.Errorf("failed to unmarshal show: %w", err)
		}
		shows = append(shows, show)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shows: %w", err)
	}

	return shows, nil
}

// GetShow retrieves a single tracked show. Returns pgx.ErrNoRows when the
// user does not track the show.
func (s *ShowService) GetShow(ctx context.Context, userID uuid.UUID, showID int) (*models.TrackedShow, error) {
	query := `SELECT doc FROM "TrackedShow" WHERE "userId" = $1 AND "showId" = $2`

	var doc []byte
	if err := s.db.QueryRow(ctx, query, userID, showID).Scan(&doc); err != nil {
		return nil, err
	}

	var show models.TrackedShow
	if err := json.Unmarshal(doc, &show); err != nil {
		return nil, fmt.Errorf("failed to unmarshal show: %w", err)
	}

	return &show, nil
}

// AddShow creates a tracked show record from a catalog show and its episode
// list. Writing the same (userId, showId) key again overwrites the existing
// record unconditionally.
func (s *ShowService) AddShow(ctx context.Context, userID uuid.UUID, show models.Show, episodes []models.Episode) error {
	tracked := models.TrackedShow{
		Show:          show,
		UserID:        userID,
		Episodes:      episodes,
		CurrentSeason: 1,
	}

	doc, err := encodeShow(tracked)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO "TrackedShow" ("userId", "showId", doc)
		VALUES ($1, $2, $3)
		ON CONFLICT ("userId", "showId")
		DO UPDATE SET doc = EXCLUDED.doc, "updatedAt" = NOW()
	`

	if _, err := s.db.Exec(ctx, query, userID, show.ID, doc); err != nil {
		return fmt.Errorf("failed to add show: %w", err)
	}

	return nil
}

// UpdateShow overwrites the full record for a tracked show. Returns
// pgx.ErrNoRows when the record does not exist.
func (s *ShowService) UpdateShow(ctx context.Context, userID uuid.UUID, show models.TrackedShow) error {
	doc, err := encodeShow(show)
	if err != nil {
		return err
	}

	query := `
		UPDATE "TrackedShow"
		SET doc = $3, "updatedAt" = NOW()
		WHERE "userId" = $1 AND "showId" = $2
	`

	result, err := s.db.Exec(ctx, query, userID, show.ID, doc)
	if err != nil {
		return fmt.Errorf("failed to update show: %w", err)
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// DeleteShow removes a tracked show record. Deleting a record that does not
// exist is not an error.
func (s *ShowService) DeleteShow(ctx context.Context, userID uuid.UUID, showID int) error {
	query := `DELETE FROM "TrackedShow" WHERE "userId" = $1 AND "showId" = $2`

	if _, err := s.db.Exec(ctx, query, userID, showID); err != nil {
		return fmt.Errorf("failed to delete show: %w", err)
	}

	return nil
}

// encodeShow normalizes a record and serializes it to its canonical JSON
// document form. This is the single serialization boundary for the gateway:
// absent fields are omitted from the document rather than written as null.
func encodeShow(show models.TrackedShow) ([]byte, error) {
	doc, err := json.Marshal(normalizeShow(show))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal show: %w", err)
	}
	return doc, nil
}

// normalizeShow enforces the document invariants before a write: a stale
// watchedAt on an unwatched episode is cleared, the episode list is never
// null, and currentSeason defaults to 1.
func normalizeShow(show models.TrackedShow) models.TrackedShow {
	out := show.Clone()
	if out.Episodes == nil {
		out.Episodes = []models.Episode{}
	}
	if out.CurrentSeason == 0 {
		out.CurrentSeason = 1
	}
	for i := range out.Episodes {
		if !out.Episodes[i].Watched {
			out.Episodes[i].WatchedAt = nil
		}
	}
	return out
}
