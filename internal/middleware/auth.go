package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/calewis/showtrack/internal/database"
	"github.com/calewis/showtrack/internal/models"
	"github.com/calewis/showtrack/internal/services"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserContextKey is the key for storing user in context
	UserContextKey ContextKey = "user"
	// UserIDContextKey is the key for storing user ID in context
	UserIDContextKey ContextKey = "userID"
)

// AuthMiddleware resolves the session cookie to a signed-in user for
// protected routes
type AuthMiddleware struct {
	sessionStore *database.SessionStore
	userService  *services.UserService
	cookieName   string
	isProduction bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(sessionStore *database.SessionStore, userService *services.UserService, cookieName string, isProduction bool) *AuthMiddleware {
	if cookieName == "" {
		cookieName = "session"
	}
	return &AuthMiddleware{
		sessionStore: sessionStore,
		userService:  userService,
		cookieName:   cookieName,
		isProduction: isProduction,
	}
}

// RequireAuth ensures the request carries a valid session and puts the user
// on the request context. API routes get a JSON 401 when it does not.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}

		userID, err := m.sessionStore.Get(r.Context(), cookie.Value)
		if err != nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}

		user, err := m.userService.Get(r.Context(), userID)
		if err != nil {
			// Session points at a user that no longer exists; drop it.
			m.sessionStore.Delete(r.Context(), cookie.Value)
			m.ClearSessionCookie(w)
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, UserIDContextKey, userID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext retrieves the user from request context
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// GetUserIDFromContext retrieves the user ID from request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	return userID, ok
}

// SetSessionCookie sets a session cookie
func (m *AuthMiddleware) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60, // 7 days
		HttpOnly: true,
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie clears the session cookie
func (m *AuthMiddleware) ClearSessionCookie(w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.isProduction,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}
