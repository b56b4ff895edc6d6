// Package respond centralizes response encoding and the mapping from domain
// errors to HTTP status codes, so every handler refuses the same way.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/duetrack/duetrack/internal/auth"
	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/tenant"
	"github.com/duetrack/duetrack/internal/tier"
	"github.com/duetrack/duetrack/internal/user"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// quotaResponse is the refusal payload for plan limit errors, carrying enough
// for a client to render an upgrade prompt.
type quotaResponse struct {
	Error   string       `json:"error"`
	Feature tier.Feature `json:"feature"`
	Limit   int          `json:"limit"`
	Used    int          `json:"used"`
}

// Error maps a domain error to its status code and writes it.
func Error(w http.ResponseWriter, err error) {
	var quotaErr *tier.QuotaError
	if errors.As(err, &quotaErr) {
		JSON(w, http.StatusForbidden, quotaResponse{
			Error:   quotaErr.Error(),
			Feature: quotaErr.Feature,
			Limit:   quotaErr.Limit,
			Used:    quotaErr.Used,
		})

		return
	}

	switch {
	case errors.Is(err, bill.ErrInvalid),
		errors.Is(err, tenant.ErrInvalid),
		errors.Is(err, user.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)

	case errors.Is(err, tenant.ErrAccessDenied):
		http.Error(w, err.Error(), http.StatusForbidden)

	case errors.Is(err, bill.ErrNotFound),
		errors.Is(err, bill.ErrSettlementNotFound),
		errors.Is(err, tenant.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, tenant.ErrCannotRevokeOwner),
		errors.Is(err, tenant.ErrCannotRevokeLastAccess),
		errors.Is(err, user.ErrCannotDeleteSelf),
		errors.Is(err, user.ErrUsernameTaken):
		http.Error(w, err.Error(), http.StatusConflict)

	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
