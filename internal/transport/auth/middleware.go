package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"payment-approval/internal/domain"
	"payment-approval/internal/repository"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// TokenMiddleware authenticates requests by personal access token. The token
// is read from the Authorization header, falling back to the token query
// parameter for websocket upgrades where headers are awkward.
func TokenMiddleware(tokenRepo *repository.PersonalAccessTokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var pat *domain.PersonalAccessToken

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				plainToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
				if plainToken != "" {
					p, err := tokenRepo.FindTokenByPlainToken(r.Context(), plainToken)
					if err == nil {
						pat = p
					}
				}
			}

			if pat == nil {
				if token := r.URL.Query().Get("token"); token != "" {
					p, err := tokenRepo.FindTokenByPlainToken(r.Context(), token)
					if err == nil {
						pat = p
					}
				}
			}

			if pat == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
				log.Printf("[AUTH] token %d expired at %v", pat.ID, pat.ExpiresAt)
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, pat.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}
