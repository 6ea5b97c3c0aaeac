package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies which OAuth provider an account was created through.
type Provider string

const (
	ProviderGitHub Provider = "GITHUB"
	ProviderGoogle Provider = "GOOGLE"
)

// User is an account that owns a show library. Accounts are created on first
// OAuth login and keyed by the provider's subject id.
type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProviderID string    `db:"providerId" json:"providerId"`
	Provider   Provider  `db:"provider" json:"provider"`
	Email      string    `db:"email" json:"email"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `db:"updatedAt" json:"updatedAt"`
}

func (p Provider) String() string {
	return string(p)
}

// IsValid reports whether p is a known provider.
func (p Provider) IsValid() bool {
	return p == ProviderGitHub || p == ProviderGoogle
}
