// Package autopay runs the tenant-scoped automatic settlement pass.
package autopay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/bill"
)

// Repository is the slice of the bill store the processor needs. Settle must
// be atomic per bill (settlement insert + due-date advance in one
// transaction), which is what makes the pass safe to re-invoke: a bill
// advanced past asOf simply falls out of the next selection.
type Repository interface {
	ListDueAutoPay(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]*bill.Bill, error)
	Settle(ctx context.Context, params bill.SettleParams) (*bill.Settlement, error)
}

// Entry reports one automatically settled bill.
type Entry struct {
	BillID  uuid.UUID
	Name    string
	Amount  int64
	NextDue time.Time
}

// Result summarizes one processing pass.
type Result struct {
	ProcessedCount int
	Entries        []Entry
}

// Processor settles a tenant's due auto-pay bills. It is invoked by an
// external trigger (cron-like caller) and never schedules itself.
type Processor struct {
	repo Repository
}

func NewProcessor(repo Repository) *Processor {
	return &Processor{repo: repo}
}

// ProcessDue settles every active auto-pay bill in the tenant whose due date
// is on or before asOf. Each bill is settled for its nominal amount (0 for
// variable bills) and advanced one occurrence; auto-pay never archives.
//
// Eligibility is evaluated once at pass start, so no bill is settled twice in
// one invocation. A mid-pass failure leaves the already-processed bills
// settled; re-invoking resumes with the remainder.
func (p *Processor) ProcessDue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*Result, error) {
	due, err := p.repo.ListDueAutoPay(ctx, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("selecting due bills: %w", err)
	}

	result := &Result{Entries: make([]Entry, 0, len(due))}

	for _, b := range due {
		nextDue := b.Rule.Next(b.DueDate)

		_, err := p.repo.Settle(ctx, bill.SettleParams{
			Bill:    b,
			Amount:  b.NominalAmount(),
			Date:    asOf,
			Advance: true,
			NextDue: nextDue,
		})
		if err != nil {
			return nil, fmt.Errorf("settling %q: %w", b.Name, err)
		}

		result.Entries = append(result.Entries, Entry{
			BillID:  b.ID,
			Name:    b.Name,
			Amount:  b.NominalAmount(),
			NextDue: nextDue,
		})
		result.ProcessedCount++
	}

	slog.Info("auto-settlement pass complete",
		"tenant_id", tenantID,
		"as_of", asOf.Format(time.DateOnly),
		"processed", result.ProcessedCount,
	)

	return result, nil
}
