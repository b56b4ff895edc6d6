package autopay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetrack/duetrack/internal/autopay"
	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/schedule"
)

// fakeRepo keeps bills in memory and applies Settle the way the real store
// does: settlement appended and due date advanced atomically.
type fakeRepo struct {
	bills       []*bill.Bill
	settlements []*bill.Settlement
	settleErr   error
}

func (f *fakeRepo) ListDueAutoPay(_ context.Context, tenantID uuid.UUID, asOf time.Time) ([]*bill.Bill, error) {
	var due []*bill.Bill

	for _, b := range f.bills {
		if b.TenantID == tenantID && !b.Archived && b.AutoPay && !b.DueDate.After(asOf) {
			due = append(due, b)
		}
	}

	return due, nil
}

func (f *fakeRepo) Settle(_ context.Context, params bill.SettleParams) (*bill.Settlement, error) {
	if f.settleErr != nil {
		return nil, f.settleErr
	}

	s := &bill.Settlement{
		ID:        uuid.New(),
		BillID:    params.Bill.ID,
		Amount:    params.Amount,
		SettledOn: params.Date,
		Notes:     params.Notes,
	}
	f.settlements = append(f.settlements, s)

	if params.Advance {
		params.Bill.DueDate = params.NextDue
		params.Bill.Archived = false
	}

	return s, nil
}

func amount(cents int64) *int64 { return &cents }

func newBill(tenantID uuid.UUID, name string, cents *int64, due time.Time, autoPay bool) *bill.Bill {
	return &bill.Bill{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Name:          name,
		Amount:        cents,
		IsVariable:    cents == nil,
		FrequencyKind: schedule.KindMonthly,
		ScheduleMode:  schedule.ModeSimple,
		Rule:          schedule.Monthly{},
		DueDate:       due,
		AutoPay:       autoPay,
	}
}

func TestProcessor_ProcessDue(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	asOf := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	rent := newBill(tenantID, "Rent", amount(120000), asOf, true)
	power := newBill(tenantID, "Power", nil, asOf.AddDate(0, 0, -10), true)
	manual := newBill(tenantID, "Gym", amount(3000), asOf, false)
	future := newBill(tenantID, "Insurance", amount(9000), asOf.AddDate(0, 0, 1), true)
	otherTenant := newBill(uuid.New(), "Rent", amount(5000), asOf, true)

	repo := &fakeRepo{bills: []*bill.Bill{rent, power, manual, future, otherTenant}}
	processor := autopay.NewProcessor(repo)

	result, err := processor.ProcessDue(ctx, tenantID, asOf)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	require.Len(t, result.Entries, 2)

	// Overdue bills sort ahead of bills due today in the real store; the
	// fake preserves insertion order, so look entries up by bill.
	byID := make(map[uuid.UUID]autopay.Entry, len(result.Entries))
	for _, e := range result.Entries {
		byID[e.BillID] = e
	}

	rentEntry, ok := byID[rent.ID]
	require.True(t, ok)
	assert.Equal(t, "Rent", rentEntry.Name)
	assert.Equal(t, int64(120000), rentEntry.Amount)
	assert.Equal(t, time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC), rentEntry.NextDue)

	// Variable bill settles at zero.
	powerEntry, ok := byID[power.ID]
	require.True(t, ok)
	assert.Equal(t, int64(0), powerEntry.Amount)

	// Due dates advanced in place, bills stay active.
	assert.True(t, rent.DueDate.After(asOf))
	assert.False(t, rent.Archived)

	// Manual, future, and cross-tenant bills untouched.
	assert.Len(t, repo.settlements, 2)
}

func TestProcessor_ProcessDue_Idempotent(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	asOf := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	b := newBill(tenantID, "Rent", amount(120000), asOf, true)
	repo := &fakeRepo{bills: []*bill.Bill{b}}
	processor := autopay.NewProcessor(repo)

	first, err := processor.ProcessDue(ctx, tenantID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ProcessedCount)

	second, err := processor.ProcessDue(ctx, tenantID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ProcessedCount)

	assert.Len(t, repo.settlements, 1, "exactly one settlement per eligible bill across repeat passes")
}

func TestProcessor_ProcessDue_NoEligibleBills(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	asOf := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	repo := &fakeRepo{}
	processor := autopay.NewProcessor(repo)

	result, err := processor.ProcessDue(ctx, tenantID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Empty(t, result.Entries)
}

func TestProcessor_ProcessDue_SettleFailureStopsPass(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	asOf := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	repo := &fakeRepo{
		bills:     []*bill.Bill{newBill(tenantID, "Rent", amount(120000), asOf, true)},
		settleErr: errors.New("db down"),
	}
	processor := autopay.NewProcessor(repo)

	_, err := processor.ProcessDue(ctx, tenantID, asOf)
	assert.Error(t, err)
	assert.Empty(t, repo.settlements)
}
