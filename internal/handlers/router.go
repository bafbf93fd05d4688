package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/userauth/internal/handlers/middleware"
	"github.com/nkiryanov/userauth/internal/handlers/render"
	"github.com/nkiryanov/userauth/internal/logger"
	"github.com/nkiryanov/userauth/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(authService authService, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(authService, logger)

	mux := http.NewServeMux()

	mux.Handle("POST /api/user/register", handleRegister(authService, logger))
	mux.Handle("POST /api/user/login", handleLogin(authService, logger))
	mux.Handle("POST /api/user/refresh", handleTokenRefresh(authService, logger))

	profile := withAuth(handleUserProfile(authService, logger))
	mux.Handle("POST /api/user/logout", withAuth(handleLogout(authService, logger)))
	mux.Handle("GET /api/user/profile", profile)
	mux.Handle("GET /api/user", profile)
	mux.Handle("GET /api/user/{$}", profile)

	mux.Handle("GET /health", handleHealth())

	handler := chain(mux,
		middleware.TracingMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.RecoverMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user with email and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials if user not found or password is wrong
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Exchange refresh token for a new pair
	// Has to return apperrors.ErrUnauthorized whatever is wrong with the token
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Forget refresh token of the user
	Logout(ctx context.Context, userID uuid.UUID) error

	Profile(ctx context.Context, userID uuid.UUID) (models.Profile, error)

	// Resolve access token to profile of existing user
	Authenticate(ctx context.Context, access string) (models.Profile, error)
}

func handleHealth() http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		render.JSON(w, response{Status: "ok"})
	})
}

// Log the error and tell the client nothing about it
func internalError(w http.ResponseWriter, l logger.Logger, msg string, err error) {
	l.Error(msg, "error", err)
	render.InternalError(w)
}
