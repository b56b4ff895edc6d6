package autopay

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/autopay"
	"github.com/duetrack/duetrack/internal/http/middleware"
	"github.com/duetrack/duetrack/internal/http/respond"
)

// Handler triggers the auto-settlement pass for one bill group. The trigger
// is external (cron hitting the endpoint); nothing here schedules itself.
type Handler struct {
	processor *autopay.Processor
}

func NewHandler(processor *autopay.Processor) *Handler {
	return &Handler{processor: processor}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/run", h.run)
}

type entryResponse struct {
	BillID  uuid.UUID `json:"bill_id"`
	Name    string    `json:"name"`
	Amount  int64     `json:"amount"`
	NextDue string    `json:"next_due"`
}

type runResponse struct {
	Processed int             `json:"processed"`
	Entries   []entryResponse `json:"entries"`
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	t, ok := middleware.TenantFrom(r.Context())
	if !ok {
		http.Error(w, "no bill group in scope", http.StatusInternalServerError)
		return
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	if s := r.URL.Query().Get("as_of"); s != "" {
		parsed, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, "invalid as_of, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		asOf = parsed
	}

	result, err := h.processor.ProcessDue(r.Context(), t.ID, asOf)
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := runResponse{
		Processed: result.ProcessedCount,
		Entries:   make([]entryResponse, 0, len(result.Entries)),
	}
	for _, e := range result.Entries {
		resp.Entries = append(resp.Entries, entryResponse{
			BillID:  e.BillID,
			Name:    e.Name,
			Amount:  e.Amount,
			NextDue: e.NextDue.Format(time.DateOnly),
		})
	}

	respond.JSON(w, http.StatusOK, resp)
}
