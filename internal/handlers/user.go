package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/userauth/internal/apperrors"
	"github.com/nkiryanov/userauth/internal/handlers/render"
	"github.com/nkiryanov/userauth/internal/handlers/userctx"
	"github.com/nkiryanov/userauth/internal/logger"
	"github.com/nkiryanov/userauth/internal/models"
)

// Public user profile as rendered to clients
type profileData struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newProfileData(p models.Profile) profileData {
	return profileData{
		ID:        p.ID,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func handleUserProfile(authService authService, logger logger.Logger) http.Handler {
	type response struct {
		User profileData `json:"user"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticated, _ := userctx.FromContext(r.Context())

		// Read again, user may be changed or deleted since authenticated
		profile, err := authService.Profile(r.Context(), authenticated.ID)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		default:
			internalError(w, logger, "can't get user profile", err)
			return
		}

		render.JSON(w, response{User: newProfileData(profile)})
	})
}
