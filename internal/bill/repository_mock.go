// Code generated by MockGen. DO NOT EDIT.
// Source: service.go
//
// Generated by this command:
//
//	mockgen -source=service.go -destination=repository_mock.go -package=bill
//

// Package bill is a generated GoMock package.
package bill

import (
	context "context"
	reflect "reflect"

	uuid "github.com/google/uuid"
	gomock "go.uber.org/mock/gomock"
)

// MockRepository is a mock of Repository interface.
type MockRepository struct {
	ctrl     *gomock.Controller
	recorder *MockRepositoryMockRecorder
}

// MockRepositoryMockRecorder is the mock recorder for MockRepository.
type MockRepositoryMockRecorder struct {
	mock *MockRepository
}

// NewMockRepository creates a new mock instance.
func NewMockRepository(ctrl *gomock.Controller) *MockRepository {
	mock := &MockRepository{ctrl: ctrl}
	mock.recorder = &MockRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRepository) EXPECT() *MockRepositoryMockRecorder {
	return m.recorder
}

// AverageAmount mocks base method.
func (m *MockRepository) AverageAmount(ctx context.Context, tenantID uuid.UUID, name string) (*int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AverageAmount", ctx, tenantID, name)
	ret0, _ := ret[0].(*int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// AverageAmount indicates an expected call of AverageAmount.
func (mr *MockRepositoryMockRecorder) AverageAmount(ctx, tenantID, name any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AverageAmount", reflect.TypeOf((*MockRepository)(nil).AverageAmount), ctx, tenantID, name)
}

// CreateBill mocks base method.
func (m *MockRepository) CreateBill(ctx context.Context, b *Bill) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateBill", ctx, b)
	ret0, _ := ret[0].(error)
	return ret0
}

// CreateBill indicates an expected call of CreateBill.
func (mr *MockRepositoryMockRecorder) CreateBill(ctx, b any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateBill", reflect.TypeOf((*MockRepository)(nil).CreateBill), ctx, b)
}

// DeleteBill mocks base method.
func (m *MockRepository) DeleteBill(ctx context.Context, tenantID, billID uuid.UUID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteBill", ctx, tenantID, billID)
	ret0, _ := ret[0].(error)
	return ret0
}

// DeleteBill indicates an expected call of DeleteBill.
func (mr *MockRepositoryMockRecorder) DeleteBill(ctx, tenantID, billID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteBill", reflect.TypeOf((*MockRepository)(nil).DeleteBill), ctx, tenantID, billID)
}

// DeleteSettlement mocks base method.
func (m *MockRepository) DeleteSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteSettlement", ctx, tenantID, settlementID)
	ret0, _ := ret[0].(error)
	return ret0
}

// DeleteSettlement indicates an expected call of DeleteSettlement.
func (mr *MockRepositoryMockRecorder) DeleteSettlement(ctx, tenantID, settlementID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteSettlement", reflect.TypeOf((*MockRepository)(nil).DeleteSettlement), ctx, tenantID, settlementID)
}

// GetBill mocks base method.
func (m *MockRepository) GetBill(ctx context.Context, tenantID, billID uuid.UUID) (*Bill, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBill", ctx, tenantID, billID)
	ret0, _ := ret[0].(*Bill)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetBill indicates an expected call of GetBill.
func (mr *MockRepositoryMockRecorder) GetBill(ctx, tenantID, billID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBill", reflect.TypeOf((*MockRepository)(nil).GetBill), ctx, tenantID, billID)
}

// GetSettlement mocks base method.
func (m *MockRepository) GetSettlement(ctx context.Context, tenantID, settlementID uuid.UUID) (*Settlement, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSettlement", ctx, tenantID, settlementID)
	ret0, _ := ret[0].(*Settlement)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSettlement indicates an expected call of GetSettlement.
func (mr *MockRepositoryMockRecorder) GetSettlement(ctx, tenantID, settlementID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSettlement", reflect.TypeOf((*MockRepository)(nil).GetSettlement), ctx, tenantID, settlementID)
}

// ListBills mocks base method.
func (m *MockRepository) ListBills(ctx context.Context, tenantID uuid.UUID, includeArchived bool) ([]*Bill, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListBills", ctx, tenantID, includeArchived)
	ret0, _ := ret[0].([]*Bill)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListBills indicates an expected call of ListBills.
func (mr *MockRepositoryMockRecorder) ListBills(ctx, tenantID, includeArchived any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListBills", reflect.TypeOf((*MockRepository)(nil).ListBills), ctx, tenantID, includeArchived)
}

// ListSettlements mocks base method.
func (m *MockRepository) ListSettlements(ctx context.Context, tenantID, billID uuid.UUID) ([]*Settlement, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListSettlements", ctx, tenantID, billID)
	ret0, _ := ret[0].([]*Settlement)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListSettlements indicates an expected call of ListSettlements.
func (mr *MockRepositoryMockRecorder) ListSettlements(ctx, tenantID, billID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListSettlements", reflect.TypeOf((*MockRepository)(nil).ListSettlements), ctx, tenantID, billID)
}

// SetArchived mocks base method.
func (m *MockRepository) SetArchived(ctx context.Context, tenantID, billID uuid.UUID, archived bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetArchived", ctx, tenantID, billID, archived)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetArchived indicates an expected call of SetArchived.
func (mr *MockRepositoryMockRecorder) SetArchived(ctx, tenantID, billID, archived any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetArchived", reflect.TypeOf((*MockRepository)(nil).SetArchived), ctx, tenantID, billID, archived)
}

// Settle mocks base method.
func (m *MockRepository) Settle(ctx context.Context, params SettleParams) (*Settlement, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Settle", ctx, params)
	ret0, _ := ret[0].(*Settlement)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Settle indicates an expected call of Settle.
func (mr *MockRepositoryMockRecorder) Settle(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Settle", reflect.TypeOf((*MockRepository)(nil).Settle), ctx, params)
}

// UpdateBill mocks base method.
func (m *MockRepository) UpdateBill(ctx context.Context, b *Bill) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateBill", ctx, b)
	ret0, _ := ret[0].(error)
	return ret0
}

// UpdateBill indicates an expected call of UpdateBill.
func (mr *MockRepositoryMockRecorder) UpdateBill(ctx, b any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateBill", reflect.TypeOf((*MockRepository)(nil).UpdateBill), ctx, b)
}

// UpdateSettlement mocks base method.
func (m *MockRepository) UpdateSettlement(ctx context.Context, tenantID uuid.UUID, s *Settlement) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateSettlement", ctx, tenantID, s)
	ret0, _ := ret[0].(error)
	return ret0
}

// UpdateSettlement indicates an expected call of UpdateSettlement.
func (mr *MockRepositoryMockRecorder) UpdateSettlement(ctx, tenantID, s any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateSettlement", reflect.TypeOf((*MockRepository)(nil).UpdateSettlement), ctx, tenantID, s)
}
