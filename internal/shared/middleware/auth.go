package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/andrasnagy-data/authscreen/internal/shared/cookie"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	userIDKey    contextKey = "userID"
	sessionIDKey contextKey = "sessionID"
)

// SessionToucher resolves a live session to its user and extends its expiry
type SessionToucher interface {
	Touch(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
}

// GetUserID extracts the user ID from the request context
func GetUserID(ctx context.Context) uuid.UUID {
	userID, _ := ctx.Value(userIDKey).(uuid.UUID)
	return userID
}

// GetSessionID extracts the session ID from the request context
func GetSessionID(ctx context.Context) uuid.UUID {
	sessionID, _ := ctx.Value(sessionIDKey).(uuid.UUID)
	return sessionID
}

// NewAuthMiddleware rejects requests without a live session with 401 and no body.
// Authenticated requests carry the user and session IDs in their context, and sessions
// with an inactivity window get their cookie re-issued for a full TTL.
func NewAuthMiddleware(secretKey []byte, opts cookie.Options, sessions SessionToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := hlog.FromRequest(r)

			sessionID, err := cookie.GetSession(r, secretKey)
			if err != nil {
				logger.Debug().Err(err).Msg("Rejected request without a valid session cookie")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			userID, err := sessions.Touch(r.Context(), sessionID)
			if err != nil {
				logger.Debug().Err(err).Str("session_id", sessionID.String()).Msg("Rejected request with unknown or expired session")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			if opts.TTL > 0 {
				if err := cookie.SetSession(w, sessionID, secretKey, opts); err != nil {
					logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to refresh session cookie")
				}
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, sessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
