package export

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/export"
	"github.com/duetrack/duetrack/internal/http/middleware"
	"github.com/duetrack/duetrack/internal/http/respond"
	"github.com/duetrack/duetrack/internal/tenant"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/bills", h.bills)
	r.Get("/bills/{id}/settlements", h.settlements)
}

func (h *Handler) bills(w http.ResponseWriter, r *http.Request) {
	principal, t, ok := requestScope(w, r)
	if !ok {
		return
	}

	// Buffer the CSV so a mid-export failure still maps to a clean error
	// response instead of a truncated download.
	var buf bytes.Buffer

	if err := h.svc.WriteBills(r.Context(), &buf, principal.ID, t.ID); err != nil {
		respond.Error(w, err)
		return
	}

	filename := fmt.Sprintf("%s_bills_%s.csv", t.Name, time.Now().Format("20060102"))
	sendCSV(w, filename, &buf)
}

func (h *Handler) settlements(w http.ResponseWriter, r *http.Request) {
	principal, t, ok := requestScope(w, r)
	if !ok {
		return
	}

	billID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer

	if err := h.svc.WriteSettlements(r.Context(), &buf, principal.ID, t.ID, billID); err != nil {
		respond.Error(w, err)
		return
	}

	sendCSV(w, fmt.Sprintf("settlements_%s.csv", billID), &buf)
}

func sendCSV(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	_, _ = buf.WriteTo(w)
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
