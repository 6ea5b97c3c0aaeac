package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/calewis/showtrack/internal/middleware"
	"github.com/calewis/showtrack/internal/models"
)

func TestMe(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil, nil, AuthConfig{}, log.New(io.Discard, "", 0))

	t.Run("Returns The Signed-In User", func(t *testing.T) {
		user := &models.User{
			ID:       uuid.New(),
			Provider: models.ProviderGitHub,
			Email:    "kai@example.com",
			Name:     "Kai",
		}
		req := httptest.NewRequest("GET", "/api/me", nil)
		ctx := context.WithValue(req.Context(), middleware.UserContextKey, user)
		rec := httptest.NewRecorder()

		h.Me(rec, req.WithContext(ctx))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got models.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != user.ID || got.Email != user.Email || got.Name != user.Name {
			t.Errorf("unexpected profile: %+v", got)
		}
	})

	t.Run("Unauthorized Without User", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/me", nil)
		rec := httptest.NewRecorder()

		h.Me(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}
