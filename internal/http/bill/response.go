package bill

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/http/middleware"
	"github.com/duetrack/duetrack/internal/tenant"
)

type billResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Amount         *int64          `json:"amount,omitempty"`
	IsVariable     bool            `json:"is_variable"`
	Frequency      string          `json:"frequency"`
	Mode           string          `json:"mode"`
	ScheduleConfig json.RawMessage `json:"schedule_config,omitempty"`
	DueDate        string          `json:"due_date"`
	AutoPay        bool            `json:"auto_pay"`
	Archived       bool            `json:"archived"`
	Kind           bill.Kind       `json:"kind"`
	Account        string          `json:"account,omitempty"`
	Category       string          `json:"category,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Icon           string          `json:"icon,omitempty"`
	AverageAmount  *int64          `json:"average_amount,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

func toResponse(b *bill.Bill) billResponse {
	return billResponse{
		ID:             b.ID,
		Name:           b.Name,
		Amount:         b.Amount,
		IsVariable:     b.IsVariable,
		Frequency:      b.FrequencyKind,
		Mode:           b.ScheduleMode,
		ScheduleConfig: b.ScheduleConfig,
		DueDate:        b.DueDate.Format(time.DateOnly),
		AutoPay:        b.AutoPay,
		Archived:       b.Archived,
		Kind:           b.Kind,
		Account:        b.Account,
		Category:       b.Category,
		Notes:          b.Notes,
		Icon:           b.Icon,
		AverageAmount:  b.AverageAmount,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toResponseList(bills []*bill.Bill) []billResponse {
	resp := make([]billResponse, len(bills))
	for i, b := range bills {
		resp[i] = toResponse(b)
	}

	return resp
}

type settlementResponse struct {
	ID        uuid.UUID `json:"id"`
	BillID    uuid.UUID `json:"bill_id"`
	Amount    int64     `json:"amount"`
	SettledOn string    `json:"settled_on"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toSettlementResponse(s *bill.Settlement) settlementResponse {
	return settlementResponse{
		ID:        s.ID,
		BillID:    s.BillID,
		Amount:    s.Amount,
		SettledOn: s.SettledOn.Format(time.DateOnly),
		Notes:     s.Notes,
		CreatedAt: s.CreatedAt,
	}
}

func toSettlementResponseList(settlements []*bill.Settlement) []settlementResponse {
	resp := make([]settlementResponse, len(settlements))
	for i, s := range settlements {
		resp[i] = toSettlementResponse(s)
	}

	return resp
}

// requestScope pulls the principal and resolved bill group out of the request
// context. Both are guaranteed by the router's middleware; the guards are for
// misuse, not normal operation.
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
