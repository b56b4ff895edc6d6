package bill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/schedule"
	"github.com/duetrack/duetrack/internal/tier"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=bill
type Repository interface {
	CreateBill(ctx context.Context, b *Bill) error

	// GetBill is tenant-scoped: a bill id belonging to another tenant is
	// indistinguishable from a missing one.
	GetBill(ctx context.Context, tenantID, billID uuid.UUID) (*Bill, error)
	UpdateBill(ctx context.Context, b *Bill) error
	SetArchived(ctx context.Context, tenantID, billID uuid.UUID, archived bool) error

	// DeleteBill removes the bill and its settlements in one transaction.
	DeleteBill(ctx context.Context, tenantID, billID uuid.UUID) error

	// ListBills returns the tenant's bills ordered by due date ascending.
	ListBills(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]*Bill, error)

	// AverageAmount reports the mean settlement amount in cents across every
	// bill with the given name in the tenant (the pre-steady-state data model
	// recreated a bill per cycle, so history spans same-named rows). Nil when
	// there is no history.
	AverageAmount(ctx context.Context, tenantID uuid.UUID, name string) (*int64, error)

	// Settle atomically inserts the settlement and, when params.Advance is
	// set, moves the bill's due date to params.NextDue and forces it active.
	Settle(ctx context.Context, params SettleParams) (*Settlement, error)

	ListSettlements(ctx context.Context, tenantID, billID uuid.UUID) ([]*Settlement, error)
	GetSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) (*Settlement, error)
	UpdateSettlement(ctx context.Context, tenantID uuid.UUID, s *Settlement) error
	DeleteSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) error
}

// SettleParams is the atomic settle-and-advance unit handed to the store.
type SettleParams struct {
	Bill    *Bill
	Amount  int64
	Date    time.Time
	Notes   string
	Advance bool
	NextDue time.Time
}

// Service owns bill lifecycle transitions and the settlement ledger for one
// store. Tenant membership is checked by the caller (the tenant resolver);
// everything here is additionally scoped to the tenant id it is given.
type Service struct {
	repo Repository
	gate *tier.Gate
}

func NewService(repo Repository, gate *tier.Gate) *Service {
	return &Service{repo: repo, gate: gate}
}

type CreateParams struct {
	Name           string
	Amount         *int64
	IsVariable     bool
	FrequencyKind  string
	ScheduleMode   string
	ScheduleConfig json.RawMessage
	DueDate        time.Time
	AutoPay        bool
	Kind           Kind
	Account        string
	Category       string
	Notes          string
	Icon           string
}

// Create validates and persists a new bill after consulting the principal's
// bill quota. Nothing is written when validation or the quota check fails.
func (s *Service) Create(ctx context.Context, principalID, tenantID uuid.UUID, params CreateParams) (*Bill, error) {
	params.Name = strings.TrimSpace(params.Name)

	if params.ScheduleMode == "" {
		params.ScheduleMode = schedule.ModeSimple
	}

	if err := s.validate(params); err != nil {
		return nil, err
	}

	if err := s.gate.Require(ctx, principalID, tier.FeatureBills); err != nil {
		return nil, err
	}

	if params.IsVariable {
		params.Amount = nil
	}

	if params.Kind == "" {
		params.Kind = KindExpense
	}

	if params.Icon == "" {
		params.Icon = "payment"
	}

	b := &Bill{
		TenantID:       tenantID,
		Name:           params.Name,
		Amount:         params.Amount,
		IsVariable:     params.IsVariable,
		FrequencyKind:  params.FrequencyKind,
		ScheduleMode:   params.ScheduleMode,
		ScheduleConfig: params.ScheduleConfig,
		Rule:           schedule.Parse(params.FrequencyKind, params.ScheduleMode, params.ScheduleConfig),
		DueDate:        params.DueDate,
		AutoPay:        params.AutoPay,
		Kind:           params.Kind,
		Account:        params.Account,
		Category:       params.Category,
		Notes:          params.Notes,
		Icon:           params.Icon,
	}
	if err := s.repo.CreateBill(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

func (s *Service) Get(ctx context.Context, tenantID, billID uuid.UUID) (*Bill, error) {
	return s.repo.GetBill(ctx, tenantID, billID)
}

// Update persists an edited bill. The caller patches fields on a bill read
// through Get; validation runs on the final state.
func (s *Service) Update(ctx context.Context, b *Bill) error {
	b.Name = strings.TrimSpace(b.Name)

	if err := ValidateName(b.Name); err != nil {
		return err
	}

	if err := ValidateAmount(b.Amount, b.IsVariable); err != nil {
		return err
	}

	if err := ValidateFrequency(b.FrequencyKind, b.ScheduleMode); err != nil {
		return err
	}

	if err := validateKind(b.Kind); err != nil {
		return err
	}

	if b.IsVariable {
		b.Amount = nil
	}

	b.Rule = schedule.Parse(b.FrequencyKind, b.ScheduleMode, b.ScheduleConfig)

	return s.repo.UpdateBill(ctx, b)
}

// Archive hides a bill from default listings. Idempotent.
func (s *Service) Archive(ctx context.Context, tenantID, billID uuid.UUID) error {
	return s.repo.SetArchived(ctx, tenantID, billID, true)
}

// Unarchive restores an archived bill. Idempotent.
func (s *Service) Unarchive(ctx context.Context, tenantID, billID uuid.UUID) error {
	return s.repo.SetArchived(ctx, tenantID, billID, false)
}

// DeletePermanently removes a bill and its entire settlement history.
// Irreversible.
func (s *Service) DeletePermanently(ctx context.Context, tenantID, billID uuid.UUID) error {
	return s.repo.DeleteBill(ctx, tenantID, billID)
}

// List returns the tenant's bills ordered by due date, annotating each
// variable bill with its average historical settlement amount.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]*Bill, error) {
	bills, err := s.repo.ListBills(ctx, tenantID, includeArchived)
	if err != nil {
		return nil, err
	}

	for _, b := range bills {
		if !b.IsVariable {
			continue
		}

		avg, err := s.repo.AverageAmount(ctx, tenantID, b.Name)
		if err != nil {
			return nil, fmt.Errorf("averaging %q: %w", b.Name, err)
		}

		b.AverageAmount = avg
	}

	return bills, nil
}

type PayParams struct {
	// Amount overrides the bill's nominal amount when set.
	Amount *int64
	Date   time.Time
	Notes  string
	// Advance moves the due date forward and reactivates the bill; when
	// false the payment is ad hoc and the schedule is untouched.
	Advance bool
}

// Pay records a settlement against the bill. With Advance set, the bill's due
// date moves to the next occurrence after the current due date and the bill
// is forced active, even if it was archived — paying continues the
// recurrence. The settlement insert and the bill update are one transaction.
func (s *Service) Pay(ctx context.Context, tenantID, billID uuid.UUID, params PayParams) (*Settlement, error) {
	b, err := s.repo.GetBill(ctx, tenantID, billID)
	if err != nil {
		return nil, err
	}

	amount := b.NominalAmount()
	if params.Amount != nil {
		amount = *params.Amount
	}

	if amount < 0 {
		return nil, fmt.Errorf("%w: payment amount cannot be negative", ErrInvalid)
	}

	settleParams := SettleParams{
		Bill:    b,
		Amount:  amount,
		Date:    params.Date,
		Notes:   params.Notes,
		Advance: params.Advance,
	}
	if params.Advance {
		settleParams.NextDue = b.Rule.Next(b.DueDate)
	}

	return s.repo.Settle(ctx, settleParams)
}

// Settlements returns the bill's payment history, newest first.
func (s *Service) Settlements(ctx context.Context, tenantID, billID uuid.UUID) ([]*Settlement, error) {
	if _, err := s.repo.GetBill(ctx, tenantID, billID); err != nil {
		return nil, err
	}

	return s.repo.ListSettlements(ctx, tenantID, billID)
}

func (s *Service) GetSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) (*Settlement, error) {
	return s.repo.GetSettlement(ctx, tenantID, settlementID)
}

// UpdateSettlement applies an administrative correction.
func (s *Service) UpdateSettlement(ctx context.Context, tenantID uuid.UUID, settlement *Settlement) error {
	if settlement.Amount < 0 {
		return fmt.Errorf("%w: payment amount cannot be negative", ErrInvalid)
	}

	return s.repo.UpdateSettlement(ctx, tenantID, settlement)
}

// DeleteSettlement removes a settlement record.
func (s *Service) DeleteSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) error {
	return s.repo.DeleteSettlement(ctx, tenantID, settlementID)
}

func (s *Service) validate(params CreateParams) error {
	if err := ValidateName(params.Name); err != nil {
		return err
	}

	if err := ValidateAmount(params.Amount, params.IsVariable); err != nil {
		return err
	}

	if err := ValidateFrequency(params.FrequencyKind, params.ScheduleMode); err != nil {
		return err
	}

	if params.Kind != "" {
		if err := validateKind(params.Kind); err != nil {
			return err
		}
	}

	if params.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", ErrInvalid)
	}

	return nil
}
