package importcsv

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/http/middleware"
	"github.com/duetrack/duetrack/internal/http/respond"
	"github.com/duetrack/duetrack/internal/importer"
	"github.com/duetrack/duetrack/internal/tenant"
)

type Handler struct {
	svc *importer.Service
}

func NewHandler(svc *importer.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type billResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Amount  *int64    `json:"amount,omitempty"`
	DueDate string    `json:"due_date"`
}

type importResponse struct {
	Imported int            `json:"imported"`
	Bills    []billResponse `json:"bills"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	principal, t, ok := requestScope(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	result, err := h.svc.Import(r.Context(), principal.ID, t.ID, file)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(result))
}

func toResponse(result *importer.Result) importResponse {
	resp := importResponse{
		Imported: len(result.Created),
		Bills:    make([]billResponse, 0, len(result.Created)),
	}
	for _, b := range result.Created {
		resp.Bills = append(resp.Bills, toBillResponse(b))
	}

	return resp
}

func toBillResponse(b *bill.Bill) billResponse {
	return billResponse{
		ID:      b.ID,
		Name:    b.Name,
		Amount:  b.Amount,
		DueDate: b.DueDate.Format(time.DateOnly),
	}
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
