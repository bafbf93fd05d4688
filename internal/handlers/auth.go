package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/nkiryanov/userauth/internal/apperrors"
	"github.com/nkiryanov/userauth/internal/handlers/render"
	"github.com/nkiryanov/userauth/internal/handlers/userctx"
	"github.com/nkiryanov/userauth/internal/logger"
	"github.com/nkiryanov/userauth/internal/models"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func (r *registerRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *loginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

type authResponse struct {
	Message      string      `json:"message"`
	User         profileData `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

func newAuthResponse(message string, user models.User, pair models.TokenPair) authResponse {
	return authResponse{
		Message:      message,
		User:         newProfileData(models.ProfileOf(user)),
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}
}

func handleRegister(authService authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[registerRequest](w, r)
		if err != nil {
			return
		}

		user, pair, err := authService.Register(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "Email already exists. Please use a different email or login.", http.StatusConflict)
			return
		default:
			internalError(w, logger, "can't register user", err)
			return
		}

		render.JSONStatus(w, newAuthResponse("User registered successfully", user, pair), http.StatusCreated)
	})
}

func handleLogin(authService authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[loginRequest](w, r)
		if err != nil {
			return
		}

		user, pair, err := authService.Login(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		default:
			internalError(w, logger, "can't login user", err)
			return
		}

		render.JSON(w, newAuthResponse("Login successful", user, pair))
	})
}

func handleTokenRefresh(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}
	type response struct {
		Message      string `json:"message"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Empty body is the same as missing token
		var data request
		err := json.NewDecoder(render.LimitBody(w, r)).Decode(&data)
		if err != nil && !errors.Is(err, io.EOF) {
			render.DecodeError(w, err)
			return
		}

		if data.RefreshToken == "" {
			render.ServiceError(w, "Refresh token is required", http.StatusUnauthorized)
			return
		}

		pair, err := authService.Refresh(r.Context(), data.RefreshToken)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
			return
		default:
			internalError(w, logger, "can't refresh tokens", err)
			return
		}

		render.JSON(w, response{
			Message:      "Access token refreshed successfully",
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}

func handleLogout(authService authService, logger logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, _ := userctx.FromContext(r.Context())

		err := authService.Logout(r.Context(), profile.ID)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		default:
			internalError(w, logger, "can't logout user", err)
			return
		}

		render.JSON(w, response{Message: "Logout successful"})
	})
}
