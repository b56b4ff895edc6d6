package bill_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/duetrack/duetrack/internal/bill"
	"github.com/duetrack/duetrack/internal/schedule"
	"github.com/duetrack/duetrack/internal/tier"
)

func amount(cents int64) *int64 { return &cents }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// usageRepo is a minimal tier.UsageRepository for wiring a real gate into
// service tests.
type usageRepo struct {
	bills int
}

func (u *usageRepo) GetSubscription(context.Context, uuid.UUID) (*tier.Subscription, error) {
	return nil, nil
}

func (u *usageRepo) CountActiveBills(context.Context, uuid.UUID) (int, error) {
	return u.bills, nil
}

func (u *usageRepo) CountTenants(context.Context, uuid.UUID) (int, error) { return 1, nil }

func (u *usageRepo) CountMembers(context.Context, uuid.UUID) (int, error) { return 1, nil }

func openGate() *tier.Gate {
	return tier.NewGate(true, tier.DefaultTable(), &usageRepo{})
}

func validCreateParams() bill.CreateParams {
	return bill.CreateParams{
		Name:          "Rent",
		Amount:        amount(120000),
		FrequencyKind: schedule.KindMonthly,
		ScheduleMode:  schedule.ModeSimple,
		DueDate:       date(2024, time.June, 1),
		AutoPay:       true,
	}
}

func TestService_Create(t *testing.T) {
	type testCase struct {
		name      string
		params    bill.CreateParams
		gate      *tier.Gate
		setupMock func(m *bill.MockRepository)
		wantErr   error
	}

	tests := []testCase{
		{
			name:   "Success",
			params: validCreateParams(),
			gate:   openGate(),
			setupMock: func(m *bill.MockRepository) {
				m.EXPECT().
					CreateBill(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, b *bill.Bill) error {
						b.ID = uuid.New()
						b.CreatedAt = time.Now()
						return nil
					})
			},
		},
		{
			name: "EmptyNameRejectedBeforeWrite",
			params: func() bill.CreateParams {
				p := validCreateParams()
				p.Name = "   "
				return p
			}(),
			gate:    openGate(),
			wantErr: bill.ErrInvalid,
		},
		{
			name: "UnknownFrequencyRejected",
			params: func() bill.CreateParams {
				p := validCreateParams()
				p.FrequencyKind = "fortnightly"
				return p
			}(),
			gate:    openGate(),
			wantErr: bill.ErrInvalid,
		},
		{
			name: "NegativeAmountRejected",
			params: func() bill.CreateParams {
				p := validCreateParams()
				p.Amount = amount(-5)
				return p
			}(),
			gate:    openGate(),
			wantErr: bill.ErrInvalid,
		},
		{
			name: "MissingAmountRejectedForFixedBill",
			params: func() bill.CreateParams {
				p := validCreateParams()
				p.Amount = nil
				return p
			}(),
			gate:    openGate(),
			wantErr: bill.ErrInvalid,
		},
		{
			name: "VariableBillNeedsNoAmount",
			params: func() bill.CreateParams {
				p := validCreateParams()
				p.Amount = nil
				p.IsVariable = true
				return p
			}(),
			gate: openGate(),
			setupMock: func(m *bill.MockRepository) {
				m.EXPECT().
					CreateBill(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, b *bill.Bill) error {
						assert.Nil(t, b.Amount)
						b.ID = uuid.New()
						return nil
					})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := bill.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := bill.NewService(repo, tt.gate)
			got, err := svc.Create(context.Background(), uuid.New(), uuid.New(), tt.params)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.NotEmpty(t, got.ID)
		})
	}
}

func TestService_Create_QuotaExceeded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Free tier at its 10-bill cap; CreateBill must never be reached.
	repo := bill.NewMockRepository(ctrl)
	gate := tier.NewGate(false, tier.DefaultTable(), &usageRepo{bills: 10})

	svc := bill.NewService(repo, gate)

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), validCreateParams())
	require.Error(t, err)

	var quotaErr *tier.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, tier.FeatureBills, quotaErr.Feature)
	assert.Equal(t, 10, quotaErr.Limit)
	assert.Equal(t, 10, quotaErr.Used)
}

func TestService_Pay(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	billID := uuid.New()

	archived := func() *bill.Bill {
		return &bill.Bill{
			ID:            billID,
			TenantID:      tenantID,
			Name:          "Rent",
			Amount:        amount(120000),
			FrequencyKind: schedule.KindMonthly,
			ScheduleMode:  schedule.ModeSimple,
			Rule:          schedule.Monthly{},
			DueDate:       date(2024, time.June, 1),
			Archived:      true,
		}
	}

	t.Run("AdvanceMovesDueDateAndReactivates", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := bill.NewMockRepository(ctrl)
		repo.EXPECT().GetBill(gomock.Any(), tenantID, billID).Return(archived(), nil)
		repo.EXPECT().
			Settle(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params bill.SettleParams) (*bill.Settlement, error) {
				assert.True(t, params.Advance)
				assert.Equal(t, date(2024, time.July, 1), params.NextDue)
				assert.True(t, params.NextDue.After(params.Bill.DueDate), "advance must move the due date forward")
				assert.Equal(t, int64(120000), params.Amount)

				return &bill.Settlement{ID: uuid.New(), BillID: billID, Amount: params.Amount}, nil
			})

		svc := bill.NewService(repo, openGate())

		settlement, err := svc.Pay(ctx, tenantID, billID, bill.PayParams{
			Date:    date(2024, time.June, 1),
			Advance: true,
		})
		require.NoError(t, err)
		assert.NotNil(t, settlement)
	})

	t.Run("AdHocPaymentLeavesScheduleAlone", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := bill.NewMockRepository(ctrl)
		repo.EXPECT().GetBill(gomock.Any(), tenantID, billID).Return(archived(), nil)
		repo.EXPECT().
			Settle(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params bill.SettleParams) (*bill.Settlement, error) {
				assert.False(t, params.Advance)
				assert.True(t, params.NextDue.IsZero())

				return &bill.Settlement{ID: uuid.New()}, nil
			})

		svc := bill.NewService(repo, openGate())

		_, err := svc.Pay(ctx, tenantID, billID, bill.PayParams{
			Amount: amount(115000),
			Date:   date(2024, time.June, 1),
		})
		require.NoError(t, err)
	})

	t.Run("OverrideAmountWins", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := bill.NewMockRepository(ctrl)
		repo.EXPECT().GetBill(gomock.Any(), tenantID, billID).Return(archived(), nil)
		repo.EXPECT().
			Settle(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params bill.SettleParams) (*bill.Settlement, error) {
				assert.Equal(t, int64(99), params.Amount)
				return &bill.Settlement{}, nil
			})

		svc := bill.NewService(repo, openGate())

		_, err := svc.Pay(ctx, tenantID, billID, bill.PayParams{
			Amount:  amount(99),
			Date:    date(2024, time.June, 1),
			Advance: true,
		})
		require.NoError(t, err)
	})

	t.Run("NegativeAmountRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := bill.NewMockRepository(ctrl)
		repo.EXPECT().GetBill(gomock.Any(), tenantID, billID).Return(archived(), nil)

		svc := bill.NewService(repo, openGate())

		_, err := svc.Pay(ctx, tenantID, billID, bill.PayParams{Amount: amount(-1)})
		assert.ErrorIs(t, err, bill.ErrInvalid)
	})

	t.Run("UnknownBillIsNotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := bill.NewMockRepository(ctrl)
		repo.EXPECT().GetBill(gomock.Any(), tenantID, billID).Return(nil, bill.ErrNotFound)

		svc := bill.NewService(repo, openGate())

		_, err := svc.Pay(ctx, tenantID, billID, bill.PayParams{Advance: true})
		assert.ErrorIs(t, err, bill.ErrNotFound)
	})
}

func TestService_List_AnnotatesVariableBills(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tenantID := uuid.New()

	fixed := &bill.Bill{ID: uuid.New(), TenantID: tenantID, Name: "Rent", Amount: amount(120000)}
	variable := &bill.Bill{ID: uuid.New(), TenantID: tenantID, Name: "Power", IsVariable: true}

	repo := bill.NewMockRepository(ctrl)
	repo.EXPECT().
		ListBills(gomock.Any(), tenantID, false).
		Return([]*bill.Bill{fixed, variable}, nil)
	repo.EXPECT().
		AverageAmount(gomock.Any(), tenantID, "Power").
		Return(amount(2000), nil)

	svc := bill.NewService(repo, openGate())

	bills, err := svc.List(context.Background(), tenantID, false)
	require.NoError(t, err)
	require.Len(t, bills, 2)

	assert.Nil(t, bills[0].AverageAmount)
	require.NotNil(t, bills[1].AverageAmount)
	assert.Equal(t, int64(2000), *bills[1].AverageAmount)
}

func TestService_ArchiveUnarchive(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tenantID := uuid.New()
	billID := uuid.New()

	repo := bill.NewMockRepository(ctrl)
	repo.EXPECT().SetArchived(gomock.Any(), tenantID, billID, true).Return(nil)
	repo.EXPECT().SetArchived(gomock.Any(), tenantID, billID, false).Return(nil)

	svc := bill.NewService(repo, openGate())

	require.NoError(t, svc.Archive(context.Background(), tenantID, billID))
	require.NoError(t, svc.Unarchive(context.Background(), tenantID, billID))
}

func TestService_UpdateSettlement_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := bill.NewMockRepository(ctrl)
	svc := bill.NewService(repo, openGate())

	err := svc.UpdateSettlement(context.Background(), uuid.New(), &bill.Settlement{Amount: -1})
	assert.ErrorIs(t, err, bill.ErrInvalid)
}

func TestService_Settlements_UnknownBill(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tenantID := uuid.New()
	billID := uuid.New()

	repo := bill.NewMockRepository(ctrl)
	repo.EXPECT().GetBill(gomock.Any(), tenantID, billID).Return(nil, bill.ErrNotFound)

	svc := bill.NewService(repo, openGate())

	_, err := svc.Settlements(context.Background(), tenantID, billID)
	assert.ErrorIs(t, err, bill.ErrNotFound)
}

func TestService_Create_RepoErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := bill.NewMockRepository(ctrl)
	repo.EXPECT().CreateBill(gomock.Any(), gomock.Any()).Return(errors.New("db error"))

	svc := bill.NewService(repo, openGate())

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), validCreateParams())
	assert.Error(t, err)
}
