package usage

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/duetrack/duetrack/internal/http/middleware"
	"github.com/duetrack/duetrack/internal/http/respond"
	"github.com/duetrack/duetrack/internal/tier"
)

// Handler reports the principal's plan and per-feature usage.
type Handler struct {
	gate *tier.Gate
}

func NewHandler(gate *tier.Gate) *Handler {
	return &Handler{gate: gate}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.usage)
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	report, err := h.gate.Usage(r.Context(), principal.ID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, report)
}
