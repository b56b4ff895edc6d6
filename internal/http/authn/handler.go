// Package authn exposes login and, when enabled, self-service registration.
package authn

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/auth"
	"github.com/duetrack/duetrack/internal/http/respond"
	"github.com/duetrack/duetrack/internal/user"
)

type Handler struct {
	authenticator      *auth.PasswordAuthenticator
	jwts               *auth.JWTManager
	enableRegistration bool
}

func NewHandler(authenticator *auth.PasswordAuthenticator, jwts *auth.JWTManager, enableRegistration bool) *Handler {
	return &Handler{
		authenticator:      authenticator,
		jwts:               jwts,
		enableRegistration: enableRegistration,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.login)

	if h.enableRegistration {
		r.Post("/register", h.register)
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Role      user.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := h.authenticator.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respond.Error(w, err)
		return
	}

	token, err := h.jwts.Generate(u)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, sessionResponse{Token: token, User: toUserResponse(u)})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := h.authenticator.Register(r.Context(), req.Username, req.Password, user.RoleUser)
	if err != nil {
		respond.Error(w, err)
		return
	}

	token, err := h.jwts.Generate(u)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, sessionResponse{Token: token, User: toUserResponse(u)})
}
