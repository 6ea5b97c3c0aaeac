package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calewis/showtrack/internal/models"
)

const userColumns = `id, "providerId", provider, email, name, "createdAt", "updatedAt"`

// UserService handles account lookup and creation for OAuth logins.
type UserService struct {
	db *pgxpool.Pool
}

// NewUserService creates a new UserService
func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

// FindOrCreate finds a user by provider ID or creates a new one
func (s *UserService) FindOrCreate(ctx context.Context, providerID string, provider models.Provider, email, name string) (*models.User, error) {
	user, err := s.FindByProviderID(ctx, providerID)
	if err == nil {
		return user, nil
	}

	if err == pgx.ErrNoRows {
		return s.Create(ctx, providerID, provider, email, name)
	}

	return nil, fmt.Errorf("failed to find user: %w", err)
}

// FindByProviderID finds a user by their provider ID
func (s *UserService) FindByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM "User" WHERE "providerId" = $1`
	return scanUser(s.db.QueryRow(ctx, query, providerID))
}

// Create creates a new user
func (s *UserService) Create(ctx context.Context, providerID string, provider models.Provider, email, name string) (*models.User, error) {
	if !provider.IsValid() {
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}

	query := `
		INSERT INTO "User" ("providerId", provider, email, name)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRow(ctx, query, providerID, provider, email, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Get retrieves a user by ID
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM "User" WHERE id = $1`
	return scanUser(s.db.QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.ProviderID,
		&user.Provider,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
