package bill

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/http/respond"
)

type Handler struct {
	svc *bill.Service
}

func NewHandler(svc *bill.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the bill surface. The router has already resolved {group}
// into a tenant by the time these run.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/archive", h.archive)
	r.Post("/{id}/unarchive", h.unarchive)
	r.Post("/{id}/pay", h.pay)
	r.Get("/{id}/settlements", h.listSettlements)
}

// SettlementRoutes mounts the settlement correction surface.
func (h *Handler) SettlementRoutes(r chi.Router) {
	r.Get("/{id}", h.getSettlement)
	r.Patch("/{id}", h.updateSettlement)
	r.Delete("/{id}", h.deleteSettlement)
}

type createBillRequest struct {
	Name           string          `json:"name"`
	Amount         *int64          `json:"amount,omitempty"`
	IsVariable     bool            `json:"is_variable"`
	Frequency      string          `json:"frequency"`
	Mode           string          `json:"mode"`
	ScheduleConfig json.RawMessage `json:"schedule_config,omitempty"`
	DueDate        string          `json:"due_date"`
	AutoPay        bool            `json:"auto_pay"`
	Kind           bill.Kind       `json:"kind"`
	Account        string          `json:"account"`
	Category       string          `json:"category"`
	Notes          string          `json:"notes"`
	Icon           string          `json:"icon"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		http.Error(w, "invalid due_date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Create(r.Context(), principal.ID, tenant.ID, bill.CreateParams{
		Name:           req.Name,
		Amount:         req.Amount,
		IsVariable:     req.IsVariable,
		FrequencyKind:  req.Frequency,
		ScheduleMode:   req.Mode,
		ScheduleConfig: req.ScheduleConfig,
		DueDate:        dueDate,
		AutoPay:        req.AutoPay,
		Kind:           req.Kind,
		Account:        req.Account,
		Category:       req.Category,
		Notes:          req.Notes,
		Icon:           req.Icon,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(b))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	includeArchived := r.URL.Query().Get("include_archived") == "true"

	bills, err := h.svc.List(r.Context(), tenant.ID, includeArchived)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(bills))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Get(r.Context(), tenant.ID, id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(b))
}

type updateBillRequest struct {
	Name           *string         `json:"name,omitempty"`
	Amount         *int64          `json:"amount,omitempty"`
	IsVariable     *bool           `json:"is_variable,omitempty"`
	Frequency      *string         `json:"frequency,omitempty"`
	Mode           *string         `json:"mode,omitempty"`
	ScheduleConfig json.RawMessage `json:"schedule_config,omitempty"`
	DueDate        *string         `json:"due_date,omitempty"`
	AutoPay        *bool           `json:"auto_pay,omitempty"`
	Kind           *bill.Kind      `json:"kind,omitempty"`
	Account        *string         `json:"account,omitempty"`
	Category       *string         `json:"category,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	Icon           *string         `json:"icon,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.svc.Get(r.Context(), tenant.ID, id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	if req.Name != nil {
		b.Name = *req.Name
	}

	if req.Amount != nil {
		b.Amount = req.Amount
	}

	if req.IsVariable != nil {
		b.IsVariable = *req.IsVariable
	}

	if req.Frequency != nil {
		b.FrequencyKind = *req.Frequency
	}

	if req.Mode != nil {
		b.ScheduleMode = *req.Mode
	}

	if req.ScheduleConfig != nil {
		b.ScheduleConfig = req.ScheduleConfig
	}

	if req.DueDate != nil {
		dueDate, err := parseDate(*req.DueDate)
		if err != nil {
			http.Error(w, "invalid due_date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		b.DueDate = dueDate
	}

	if req.AutoPay != nil {
		b.AutoPay = *req.AutoPay
	}

	if req.Kind != nil {
		b.Kind = *req.Kind
	}

	if req.Account != nil {
		b.Account = *req.Account
	}

	if req.Category != nil {
		b.Category = *req.Category
	}

	if req.Notes != nil {
		b.Notes = *req.Notes
	}

	if req.Icon != nil {
		b.Icon = *req.Icon
	}

	if err := h.svc.Update(r.Context(), b); err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeletePermanently(r.Context(), tenant.ID, id); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

func (h *Handler) unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if archived {
		err = h.svc.Archive(r.Context(), tenant.ID, id)
	} else {
		err = h.svc.Unarchive(r.Context(), tenant.ID, id)
	}

	if err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type payBillRequest struct {
	Amount *int64 `json:"amount,omitempty"`
	Date   string `json:"date,omitempty"`
	Notes  string `json:"notes,omitempty"`
	// Advance defaults to true: paying a bill moves it to its next
	// occurrence. Set false to record an ad hoc payment that leaves the
	// schedule alone.
	Advance *bool `json:"advance,omitempty"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	// An empty body means "pay the nominal amount today and advance".
	var req payBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)

	if req.Date != "" {
		date, err = parseDate(req.Date)
		if err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	advance := true
	if req.Advance != nil {
		advance = *req.Advance
	}

	settlement, err := h.svc.Pay(r.Context(), tenant.ID, id, bill.PayParams{
		Amount:  req.Amount,
		Date:    date,
		Notes:   req.Notes,
		Advance: advance,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toSettlementResponse(settlement))
}

func (h *Handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	settlements, err := h.svc.Settlements(r.Context(), tenant.ID, id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toSettlementResponseList(settlements))
}

func (h *Handler) getSettlement(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	settlement, err := h.svc.GetSettlement(r.Context(), tenant.ID, id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toSettlementResponse(settlement))
}

type updateSettlementRequest struct {
	Amount *int64  `json:"amount,omitempty"`
	Date   *string `json:"date,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func (h *Handler) updateSettlement(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	settlement, err := h.svc.GetSettlement(r.Context(), tenant.ID, id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	if req.Amount != nil {
		settlement.Amount = *req.Amount
	}

	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		settlement.SettledOn = date
	}

	if req.Notes != nil {
		settlement.Notes = *req.Notes
	}

	if err := h.svc.UpdateSettlement(r.Context(), tenant.ID, settlement); err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toSettlementResponse(settlement))
}

func (h *Handler) deleteSettlement(w http.ResponseWriter, r *http.Request) {
	_, tenant, ok := requestScope(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeleteSettlement(r.Context(), tenant.ID, id); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}
