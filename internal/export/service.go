// Package export writes a tenant's bills and settlement history as CSV. The
// bill file round-trips through the importer, so an export is also a backup.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/tier"
)

var billHeader = []string{
	"name", "amount", "frequency", "mode", "schedule_config",
	"due_date", "auto_pay", "variable", "kind", "account",
	"category", "notes", "icon",
}

var settlementHeader = []string{"settled_on", "amount", "notes"}

// BillSource is the slice of the bill service the exporter reads from.
type BillSource interface {
	List(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]*bill.Bill, error)
	Settlements(ctx context.Context, tenantID, billID uuid.UUID) ([]*bill.Settlement, error)
}

// Service streams CSV exports. Export is a paid feature; every entry point
// consults the gate before reading anything.
type Service struct {
	bills BillSource
	gate  *tier.Gate
}

func NewService(bills BillSource, gate *tier.Gate) *Service {
	return &Service{bills: bills, gate: gate}
}

// WriteBills writes every bill in the tenant, archived ones included, as CSV.
func (s *Service) WriteBills(ctx context.Context, w io.Writer, principalID, tenantID uuid.UUID) error {
	if err := s.gate.Require(ctx, principalID, tier.FeatureExport); err != nil {
		return err
	}

	bills, err := s.bills.List(ctx, tenantID, true)
	if err != nil {
		return fmt.Errorf("listing bills: %w", err)
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(billHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, b := range bills {
		if err := cw.Write(billRecord(b)); err != nil {
			return fmt.Errorf("writing bill %s: %w", b.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteSettlements writes one bill's payment history as CSV.
func (s *Service) WriteSettlements(ctx context.Context, w io.Writer, principalID, tenantID, billID uuid.UUID) error {
	if err := s.gate.Require(ctx, principalID, tier.FeatureExport); err != nil {
		return err
	}

	settlements, err := s.bills.Settlements(ctx, tenantID, billID)
	if err != nil {
		return fmt.Errorf("listing settlements: %w", err)
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(settlementHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, st := range settlements {
		record := []string{
			st.SettledOn.Format(time.DateOnly),
			formatAmount(st.Amount),
			st.Notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing settlement %s: %w", st.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func billRecord(b *bill.Bill) []string {
	amount := ""
	if b.Amount != nil {
		amount = formatAmount(*b.Amount)
	}

	config := ""
	if len(b.ScheduleConfig) > 0 {
		config = string(b.ScheduleConfig)
	}

	return []string{
		b.Name,
		amount,
		b.FrequencyKind,
		b.ScheduleMode,
		config,
		b.DueDate.Format(time.DateOnly),
		strconv.FormatBool(b.AutoPay),
		strconv.FormatBool(b.IsVariable),
		string(b.Kind),
		b.Account,
		b.Category,
		b.Notes,
		b.Icon,
	}
}

// formatAmount renders cents as a plain decimal string, e.g. 4590 -> "45.90".
func formatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
