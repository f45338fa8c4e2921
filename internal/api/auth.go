package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ImedBousakhria/fluffy-lamp/internal/auth"
)

type AuthHandlers struct {
	service *auth.Service
	logger  *slog.Logger
}

func NewAuthHandlers(service *auth.Service, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		service: service,
		logger:  logger.With(slog.String("component", "api_auth")),
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		// ErrEmailTaken and input validation both map to a client error.
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.service.MintToken(user.ID.String(), user.Name)
	if err != nil {
		h.logger.Error("failed to mint token", slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		writeMessage(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
