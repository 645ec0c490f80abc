package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey int

const userIDKey contextKey = iota

// WithUserID returns a context carrying a verified user identity
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID extracts the verified user identity from a request context
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// Middleware verifies bearer tokens and injects the authenticated user
// ID into the request context. The core operations receive that ID as
// a parameter and never re-validate credentials.
type Middleware struct {
	tokens *Tokens
	log    zerolog.Logger
}

// NewMiddleware creates an auth middleware
func NewMiddleware(tokens *Tokens, log zerolog.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		log:    log.With().Str("component", "auth").Logger(),
	}
}

// RequireUser rejects requests without a valid Authorization header
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			m.unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.unauthorized(w, "malformed authorization header")
			return
		}

		userID, err := m.tokens.Verify(parts[1])
		if err != nil {
			m.log.Debug().Err(err).Msg("Token verification failed")
			m.unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
