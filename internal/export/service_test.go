package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/tier"
)

type fakeBillSource struct {
	bills       []*bill.Bill
	settlements []*bill.Settlement
}

func (f *fakeBillSource) List(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]*bill.Bill, error) {
	return f.bills, nil
}

func (f *fakeBillSource) Settlements(ctx context.Context, tenantID, billID uuid.UUID) ([]*bill.Settlement, error) {
	return f.settlements, nil
}

type fakeUsageRepo struct {
	sub *tier.Subscription
}

func (f *fakeUsageRepo) GetSubscription(ctx context.Context, userID uuid.UUID) (*tier.Subscription, error) {
	return f.sub, nil
}

func (f *fakeUsageRepo) CountActiveBills(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeUsageRepo) CountTenants(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeUsageRepo) CountMembers(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func basicGate() *tier.Gate {
	sub := &tier.Subscription{Tier: tier.TierBasic, Status: tier.StatusActive}

	return tier.NewGate(false, tier.DefaultTable(), &fakeUsageRepo{sub: sub})
}

func freeGate() *tier.Gate {
	return tier.NewGate(false, tier.DefaultTable(), &fakeUsageRepo{})
}

func TestService_WriteBills(t *testing.T) {
	amount := int64(120000)
	due := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	source := &fakeBillSource{
		bills: []*bill.Bill{
			{
				Name:          "Rent",
				Amount:        &amount,
				FrequencyKind: "monthly",
				ScheduleMode:  "simple",
				DueDate:       due,
				AutoPay:       true,
				Kind:          bill.KindExpense,
				Category:      "housing",
				Icon:          "payment",
			},
			{
				Name:           "Water",
				IsVariable:     true,
				FrequencyKind:  "monthly",
				ScheduleMode:   "specific-dates",
				ScheduleConfig: []byte(`{"dates": [5, 20]}`),
				DueDate:        due,
				Kind:           bill.KindExpense,
				Icon:           "payment",
			},
		},
	}

	svc := NewService(source, basicGate())

	var buf bytes.Buffer

	err := svc.WriteBills(context.Background(), &buf, uuid.New(), uuid.New())
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, billHeader, rows[0])
	assert.Equal(t, []string{
		"Rent", "1200.00", "monthly", "simple", "",
		"2024-07-01", "true", "false", "expense", "",
		"housing", "", "payment",
	}, rows[1])

	// Variable bill: empty amount, config preserved.
	assert.Equal(t, "", rows[2][1])
	assert.Equal(t, `{"dates": [5, 20]}`, rows[2][4])
}

func TestService_WriteSettlements(t *testing.T) {
	source := &fakeBillSource{
		settlements: []*bill.Settlement{
			{
				Amount:    4590,
				SettledOn: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
				Notes:     "june",
			},
		},
	}

	svc := NewService(source, basicGate())

	var buf bytes.Buffer

	err := svc.WriteSettlements(context.Background(), &buf, uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-06-10", "45.90", "june"}, rows[1])
}

func TestService_WriteBills_FreeTierRefused(t *testing.T) {
	svc := NewService(&fakeBillSource{}, freeGate())

	var buf bytes.Buffer

	err := svc.WriteBills(context.Background(), &buf, uuid.New(), uuid.New())
	require.Error(t, err)

	var qe *tier.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, tier.FeatureExport, qe.Feature)

	// Nothing was written before the refusal.
	assert.Zero(t, buf.Len())
}
