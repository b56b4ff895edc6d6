package tenant

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/http/middleware"
	"github.com/duetrack/duetrack/internal/http/respond"
	"github.com/duetrack/duetrack/internal/tenant"
)

type Handler struct {
	svc *tenant.Service
	// selfHosted drops the owner requirement on group creation: a
	// single-box install has no subscriptions to anchor quotas to.
	selfHosted bool
}

func NewHandler(svc *tenant.Service, selfHosted bool) *Handler {
	return &Handler{svc: svc, selfHosted: selfHosted}
}

// Routes mounts the group collection surface.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

// GroupRoutes mounts the surface of one resolved group.
func (h *Handler) GroupRoutes(r chi.Router) {
	r.Delete("/", h.delete)
	r.Post("/members", h.grant)
	r.Delete("/members/{userID}", h.revoke)
}

type groupResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toResponse(t *tenant.Tenant) groupResponse {
	return groupResponse{
		ID:          t.ID,
		Name:        t.Name,
		DisplayName: t.DisplayName,
		Description: t.Description,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	groups, err := h.svc.List(r.Context(), principal.ID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := make([]groupResponse, len(groups))
	for i, t := range groups {
		resp[i] = toResponse(t)
	}

	respond.JSON(w, http.StatusOK, resp)
}

type createGroupRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := tenant.CreateParams{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
	}
	if !h.selfHosted {
		params.OwnerID = &principal.ID
	}

	t, err := h.svc.Create(r.Context(), params)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, t, ok := requestScope(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), principal.ID, t.ID); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type grantRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	principal, t, ok := requestScope(w, r)
	if !ok {
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == uuid.Nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.Grant(r.Context(), principal.ID, req.UserID, t.ID); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	principal, t, ok := requestScope(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Revoke(r.Context(), principal.ID, userID, t.ID); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func requestScope(w http.ResponseWriter, r *http.Request) (middleware.Principal, *tenant.Tenant, bool) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return middleware.Principal{}, nil, false
	}

	t, ok := middleware.TenantFrom(r.Context())
	if !ok {
		http.Error(w, "no bill group in scope", http.StatusInternalServerError)
		return middleware.Principal{}, nil, false
	}

	return principal, t, true
}
