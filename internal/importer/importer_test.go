package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duetrack/duetrack/internal/bill"
)

func TestParser_Parse(t *testing.T) {
	input := strings.Join([]string{
		"name,amount,frequency,mode,due_date,auto_pay,variable,category",
		"Rent,1200.00,monthly,,2024-07-01,true,,housing",
		"Electricity,,monthly,,2024-07-05,,true,utilities",
		"",
		"Internet,\"45,90\",monthly,,2024-07-10,false,false,utilities",
	}, "\n")

	params, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, params, 3)

	rent := params[0]
	assert.Equal(t, "Rent", rent.Name)
	require.NotNil(t, rent.Amount)
	assert.Equal(t, int64(120000), *rent.Amount)
	assert.Equal(t, "monthly", rent.FrequencyKind)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), rent.DueDate)
	assert.True(t, rent.AutoPay)
	assert.False(t, rent.IsVariable)
	assert.Equal(t, "housing", rent.Category)

	electricity := params[1]
	assert.Nil(t, electricity.Amount)
	assert.True(t, electricity.IsVariable)

	// European decimal format is accepted.
	internet := params[2]
	require.NotNil(t, internet.Amount)
	assert.Equal(t, int64(4590), *internet.Amount)
}

func TestParser_Parse_ScheduleConfig(t *testing.T) {
	input := strings.Join([]string{
		"name,frequency,mode,schedule_config,due_date",
		`Water,monthly,specific-dates,"{""dates"": [5, 20]}",2024-07-05`,
	}, "\n")

	params, err := NewParser().Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, params, 1)

	assert.Equal(t, "specific-dates", params[0].ScheduleMode)
	assert.JSONEq(t, `{"dates": [5, 20]}`, string(params[0].ScheduleConfig))
}

func TestParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "MissingRequiredColumn",
			input:   "name,amount\nRent,1200.00",
			wantErr: `missing column "frequency"`,
		},
		{
			name:    "BadDueDate",
			input:   "name,frequency,due_date\nRent,monthly,01-07-2024",
			wantErr: "row 2: invalid due_date",
		},
		{
			name:    "BadAmount",
			input:   "name,amount,frequency,due_date\nRent,twelve,monthly,2024-07-01",
			wantErr: "row 2: invalid amount",
		},
		{
			name:    "MissingName",
			input:   "name,frequency,due_date\n,monthly,2024-07-01",
			wantErr: "row 2: missing name",
		},
		{
			name:    "EmptyFile",
			input:   "",
			wantErr: "empty file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

type fakeCreator struct {
	created []bill.CreateParams
	failAt  int // 1-based call number to fail on, 0 means never
	err     error
}

func (f *fakeCreator) Create(_ context.Context, _, tenantID uuid.UUID, params bill.CreateParams) (*bill.Bill, error) {
	if f.failAt > 0 && len(f.created)+1 == f.failAt {
		return nil, f.err
	}

	f.created = append(f.created, params)

	return &bill.Bill{ID: uuid.New(), TenantID: tenantID, Name: params.Name}, nil
}

func TestService_Import(t *testing.T) {
	input := strings.Join([]string{
		"name,amount,frequency,due_date",
		"Rent,1200.00,monthly,2024-07-01",
		"Gym,35.00,monthly,2024-07-03",
	}, "\n")

	creator := &fakeCreator{}
	svc := NewService(creator)

	result, err := svc.Import(context.Background(), uuid.New(), uuid.New(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Len(t, result.Created, 2)
	assert.Equal(t, "Rent", creator.created[0].Name)
	assert.Equal(t, "Gym", creator.created[1].Name)
}

func TestService_Import_StopsOnCreateError(t *testing.T) {
	input := strings.Join([]string{
		"name,amount,frequency,due_date",
		"Rent,1200.00,monthly,2024-07-01",
		"Gym,35.00,monthly,2024-07-03",
	}, "\n")

	creator := &fakeCreator{failAt: 2, err: bill.ErrInvalid}
	svc := NewService(creator)

	result, err := svc.Import(context.Background(), uuid.New(), uuid.New(), strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, bill.ErrInvalid)
	assert.Contains(t, err.Error(), "row 3")

	// The first row was written before the failure.
	assert.Len(t, result.Created, 1)
}

func TestService_Import_ParseErrorWritesNothing(t *testing.T) {
	input := strings.Join([]string{
		"name,amount,frequency,due_date",
		"Rent,1200.00,monthly,2024-07-01",
		"Broken,x,monthly,2024-07-03",
	}, "\n")

	creator := &fakeCreator{}
	svc := NewService(creator)

	_, err := svc.Import(context.Background(), uuid.New(), uuid.New(), strings.NewReader(input))
	require.Error(t, err)
	assert.Empty(t, creator.created)
}
