// Package bill implements the bill lifecycle and the settlement ledger.
package bill

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/schedule"
)

var (
	ErrNotFound           = errors.New("bill not found")
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrInvalid marks validation failures; wrap it with the specific reason.
	ErrInvalid = errors.New("invalid input")
)

// Kind distinguishes money leaving from money arriving.
type Kind string

const (
	KindExpense Kind = "expense"
	KindDeposit Kind = "deposit"
)

// Bill is a recurring financial obligation with a current due date.
//
// Amount is in cents and nil when the bill is variable; a variable bill's
// typical cost is derived from its settlement history instead. Rule is the
// parsed recurrence, produced once from the persisted kind/mode/config triple
// when the row is scanned.
type Bill struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Name           string
	Amount         *int64
	IsVariable     bool
	FrequencyKind  string
	ScheduleMode   string
	ScheduleConfig json.RawMessage
	Rule           schedule.Rule
	DueDate        time.Time
	AutoPay        bool
	Archived       bool
	Kind           Kind
	Account        string
	Category       string
	Notes          string
	Icon           string
	CreatedAt      time.Time
	UpdatedAt      *time.Time

	// AverageAmount is a listing annotation for variable bills: the mean
	// historical settlement amount in cents. Never persisted.
	AverageAmount *int64
}

// NominalAmount is the amount auto-pay settles: the configured amount, or 0
// for variable/amountless bills.
func (b *Bill) NominalAmount() int64 {
	if b.Amount == nil {
		return 0
	}

	return *b.Amount
}

// Settlement is one recorded payment against a bill. Immutable in normal
// operation; amount, date, and notes may be corrected administratively.
type Settlement struct {
	ID        uuid.UUID
	BillID    uuid.UUID
	Amount    int64
	SettledOn time.Time
	Notes     string
	CreatedAt time.Time
}

// maxAmount caps amounts at one billion dollars in cents.
const maxAmount = 100_000_000_000

// ValidateName enforces the bill name rules: non-empty, at most 100 chars.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: bill name is required", ErrInvalid)
	}

	if len(name) > 100 {
		return fmt.Errorf("%w: bill name must be 100 characters or less", ErrInvalid)
	}

	return nil
}

// ValidateAmount enforces the bill amount rules. A nil amount is valid only
// for variable bills.
func ValidateAmount(amount *int64, isVariable bool) error {
	if amount == nil {
		if !isVariable {
			return fmt.Errorf("%w: amount is required for non-variable bills", ErrInvalid)
		}

		return nil
	}

	if *amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalid)
	}

	if *amount > maxAmount {
		return fmt.Errorf("%w: amount cannot exceed 1 billion", ErrInvalid)
	}

	return nil
}

// ValidateFrequency checks the persisted frequency kind and schedule mode
// against the known sets. Unknown values are rejected here even though the
// schedule engine would tolerate them, so bad data never enters the store.
func ValidateFrequency(kind, mode string) error {
	known := false

	for _, k := range schedule.Kinds {
		if kind == k {
			known = true
			break
		}
	}

	if !known {
		return fmt.Errorf("%w: unrecognized frequency %q", ErrInvalid, kind)
	}

	switch mode {
	case schedule.ModeSimple, schedule.ModeSpecificDates, schedule.ModeMultipleWeekly:
		return nil
	default:
		return fmt.Errorf("%w: unrecognized schedule mode %q", ErrInvalid, mode)
	}
}

func validateKind(kind Kind) error {
	switch kind {
	case KindExpense, KindDeposit:
		return nil
	default:
		return fmt.Errorf("%w: bill kind must be expense or deposit", ErrInvalid)
	}
}
