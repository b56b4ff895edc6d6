// Code generated by MockGen. DO NOT EDIT.
// Source: service.go
//
// Generated by this command:
//
//	mockgen -source=service.go -destination=repository_mock.go -package=tenant
//

// Package tenant is a generated GoMock package.
package tenant

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

// CountAccessible mocks base method.
func (m *MockRepository) CountAccessible(ctx context.Context, userID uuid.UUID) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CountAccessible", ctx, userID)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CountAccessible indicates an expected call of CountAccessible.
func (mr *MockRepositoryMockRecorder) CountAccessible(ctx, userID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CountAccessible", reflect.TypeOf((*MockRepository)(nil).CountAccessible), ctx, userID)
}

// CreateTenant mocks base method.
func (m *MockRepository) CreateTenant(ctx context.Context, t *Tenant) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateTenant", ctx, t)
	ret0, _ := ret[0].(error)
	return ret0
}

// CreateTenant indicates an expected call of CreateTenant.
func (mr *MockRepositoryMockRecorder) CreateTenant(ctx, t any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateTenant", reflect.TypeOf((*MockRepository)(nil).CreateTenant), ctx, t)
}

// DeleteTenant mocks base method.
func (m *MockRepository) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteTenant", ctx, id)
	ret0, _ := ret[0].(error)
	return ret0
}

// DeleteTenant indicates an expected call of DeleteTenant.
func (mr *MockRepositoryMockRecorder) DeleteTenant(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteTenant", reflect.TypeOf((*MockRepository)(nil).DeleteTenant), ctx, id)
}

// GetTenant mocks base method.
func (m *MockRepository) GetTenant(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetTenant", ctx, id)
	ret0, _ := ret[0].(*Tenant)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetTenant indicates an expected call of GetTenant.
func (mr *MockRepositoryMockRecorder) GetTenant(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetTenant", reflect.TypeOf((*MockRepository)(nil).GetTenant), ctx, id)
}

// GetTenantByName mocks base method.
func (m *MockRepository) GetTenantByName(ctx context.Context, name string) (*Tenant, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetTenantByName", ctx, name)
	ret0, _ := ret[0].(*Tenant)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetTenantByName indicates an expected call of GetTenantByName.
func (mr *MockRepositoryMockRecorder) GetTenantByName(ctx, name any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetTenantByName", reflect.TypeOf((*MockRepository)(nil).GetTenantByName), ctx, name)
}

// Grant mocks base method.
func (m *MockRepository) Grant(ctx context.Context, userID, tenantID uuid.UUID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Grant", ctx, userID, tenantID)
	ret0, _ := ret[0].(error)
	return ret0
}

// Grant indicates an expected call of Grant.
func (mr *MockRepositoryMockRecorder) Grant(ctx, userID, tenantID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Grant", reflect.TypeOf((*MockRepository)(nil).Grant), ctx, userID, tenantID)
}

// HasAccess mocks base method.
func (m *MockRepository) HasAccess(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "HasAccess", ctx, userID, tenantID)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// HasAccess indicates an expected call of HasAccess.
func (mr *MockRepositoryMockRecorder) HasAccess(ctx, userID, tenantID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "HasAccess", reflect.TypeOf((*MockRepository)(nil).HasAccess), ctx, userID, tenantID)
}

// ListAccessible mocks base method.
func (m *MockRepository) ListAccessible(ctx context.Context, userID uuid.UUID) ([]*Tenant, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListAccessible", ctx, userID)
	ret0, _ := ret[0].([]*Tenant)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListAccessible indicates an expected call of ListAccessible.
func (mr *MockRepositoryMockRecorder) ListAccessible(ctx, userID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListAccessible", reflect.TypeOf((*MockRepository)(nil).ListAccessible), ctx, userID)
}

// Revoke mocks base method.
func (m *MockRepository) Revoke(ctx context.Context, userID, tenantID uuid.UUID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Revoke", ctx, userID, tenantID)
	ret0, _ := ret[0].(error)
	return ret0
}

// Revoke indicates an expected call of Revoke.
func (mr *MockRepositoryMockRecorder) Revoke(ctx, userID, tenantID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Revoke", reflect.TypeOf((*MockRepository)(nil).Revoke), ctx, userID, tenantID)
}
