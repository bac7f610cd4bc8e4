// Package http provides the reference DevTrack backend's HTTP handlers.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/models"
	"github.com/atinyakov/devtrack/internal/service"
)

// AuthService defines the authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Login exchanges credentials for an access token.
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResult, error)
	// Register creates an account and signs it in.
	Register(ctx context.Context, reg models.Registration) (*models.AuthResult, error)
}

// AuthHandler handles HTTP requests for registration and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Validate    *validator.Validate
	Logger      *zap.Logger
}

// Login handles POST /auth/login. Unknown emails and wrong passwords
// get the same 401 answer.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if !decode(w, r, h.Validate, &req) {
		return
	}

	res, err := h.AuthService.Login(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	case err != nil:
		h.Logger.Error("login", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.Registration
	if !decode(w, r, h.Validate, &req) {
		return
	}

	res, err := h.AuthService.Register(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	case errors.Is(err, service.ErrInvalidRole):
		writeDetail(w, http.StatusBadRequest, "Invalid role")
		return
	case err != nil:
		h.Logger.Error("register", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.Logger.Info("user registered", zap.Int64("user_id", res.User.ID), zap.String("role", string(res.User.Role)))
	writeJSON(w, http.StatusOK, res)
}
