package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/userauth/internal/apperrors"
	"github.com/nkiryanov/userauth/internal/handlers/render"
	"github.com/nkiryanov/userauth/internal/handlers/userctx"
	"github.com/nkiryanov/userauth/internal/models"
)

const bearerScheme = "Bearer "

type authenticator interface {
	// Resolve access token to profile of existing user
	Authenticate(ctx context.Context, access string) (models.Profile, error)
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// Let request in only with valid access token of existing user
// Profile of the user is available to next handlers through userctx
func AuthMiddleware(a authenticator, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.ServiceError(w, "Not authorized. Please login.", http.StatusUnauthorized)
				return
			}

			profile, err := a.Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, apperrors.ErrTokenExpired):
				render.ServiceError(w, "Token expired. Please login again.", http.StatusUnauthorized)
				return
			case errors.Is(err, apperrors.ErrTokenMalformed), errors.Is(err, apperrors.ErrTokenWrongClass):
				render.ServiceError(w, "Invalid token. Please login again.", http.StatusUnauthorized)
				return
			case errors.Is(err, apperrors.ErrUserNotFound):
				render.ServiceError(w, "User no longer exists", http.StatusUnauthorized)
				return
			default:
				l.Error("can't authenticate request", "error", err)
				render.InternalError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), profile)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerScheme):])
	return token, token != ""
}
