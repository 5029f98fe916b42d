//	mockgen -source=internal/usecase/interfaces.go -destination=internal/usecase/mocks/mock_interfaces.go -package=mocks
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	domain "github.com/iho/paymentsengine/internal/domain"
	gomock "go.uber.org/mock/gomock"
)

// MockLedgerStore is a mock of LedgerStore interface.
type MockLedgerStore struct {
	ctrl     *gomock.Controller
	recorder *MockLedgerStoreMockRecorder
	isgomock struct{}
}

// MockLedgerStoreMockRecorder is the mock recorder for MockLedgerStore.
type MockLedgerStoreMockRecorder struct {
	mock *MockLedgerStore
}

// NewMockLedgerStore creates a new mock instance.
func NewMockLedgerStore(ctrl *gomock.Controller) *MockLedgerStore {
	mock := &MockLedgerStore{ctrl: ctrl}
	mock.recorder = &MockLedgerStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockLedgerStore) EXPECT() *MockLedgerStoreMockRecorder {
	return m.recorder
}

// GetSnapshot mocks base method.
func (m *MockLedgerStore) GetSnapshot(ctx context.Context, clientID uint16) (*domain.Account, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSnapshot", ctx, clientID)
	ret0, _ := ret[0].(*domain.Account)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSnapshot indicates an expected call of GetSnapshot.
func (mr *MockLedgerStoreMockRecorder) GetSnapshot(ctx, clientID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSnapshot", reflect.TypeOf((*MockLedgerStore)(nil).GetSnapshot), ctx, clientID)
}

// GetTransaction mocks base method.
func (m *MockLedgerStore) GetTransaction(ctx context.Context, id uint32) (*domain.Transaction, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetTransaction", ctx, id)
	ret0, _ := ret[0].(*domain.Transaction)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetTransaction indicates an expected call of GetTransaction.
func (mr *MockLedgerStoreMockRecorder) GetTransaction(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetTransaction", reflect.TypeOf((*MockLedgerStore)(nil).GetTransaction), ctx, id)
}

// PutSnapshot mocks base method.
func (m *MockLedgerStore) PutSnapshot(ctx context.Context, account *domain.Account) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PutSnapshot", ctx, account)
	ret0, _ := ret[0].(error)
	return ret0
}

// PutSnapshot indicates an expected call of PutSnapshot.
func (mr *MockLedgerStoreMockRecorder) PutSnapshot(ctx, account any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PutSnapshot", reflect.TypeOf((*MockLedgerStore)(nil).PutSnapshot), ctx, account)
}

// PutTransaction mocks base method.
func (m *MockLedgerStore) PutTransaction(ctx context.Context, tx *domain.Transaction) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PutTransaction", ctx, tx)
	ret0, _ := ret[0].(error)
	return ret0
}

// PutTransaction indicates an expected call of PutTransaction.
func (mr *MockLedgerStoreMockRecorder) PutTransaction(ctx, tx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PutTransaction", reflect.TypeOf((*MockLedgerStore)(nil).PutTransaction), ctx, tx)
}

// MockAtomicCommitter is a mock of AtomicCommitter interface.
type MockAtomicCommitter struct {
	ctrl     *gomock.Controller
	recorder *MockAtomicCommitterMockRecorder
	isgomock struct{}
}

// MockAtomicCommitterMockRecorder is the mock recorder for MockAtomicCommitter.
type MockAtomicCommitterMockRecorder struct {
	mock *MockAtomicCommitter
}

// NewMockAtomicCommitter creates a new mock instance.
func NewMockAtomicCommitter(ctrl *gomock.Controller) *MockAtomicCommitter {
	mock := &MockAtomicCommitter{ctrl: ctrl}
	mock.recorder = &MockAtomicCommitterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAtomicCommitter) EXPECT() *MockAtomicCommitterMockRecorder {
	return m.recorder
}

// Commit mocks base method.
func (m *MockAtomicCommitter) Commit(ctx context.Context, tx *domain.Transaction, account *domain.Account) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Commit", ctx, tx, account)
	ret0, _ := ret[0].(error)
	return ret0
}

// Commit indicates an expected call of Commit.
func (mr *MockAtomicCommitterMockRecorder) Commit(ctx, tx, account any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Commit", reflect.TypeOf((*MockAtomicCommitter)(nil).Commit), ctx, tx, account)
}

// MockSnapshotLister is a mock of SnapshotLister interface.
type MockSnapshotLister struct {
	ctrl     *gomock.Controller
	recorder *MockSnapshotListerMockRecorder
	isgomock struct{}
}

// MockSnapshotListerMockRecorder is the mock recorder for MockSnapshotLister.
type MockSnapshotListerMockRecorder struct {
	mock *MockSnapshotLister
}

// NewMockSnapshotLister creates a new mock instance.
func NewMockSnapshotLister(ctrl *gomock.Controller) *MockSnapshotLister {
	mock := &MockSnapshotLister{ctrl: ctrl}
	mock.recorder = &MockSnapshotListerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSnapshotLister) EXPECT() *MockSnapshotListerMockRecorder {
	return m.recorder
}

// ListSnapshots mocks base method.
func (m *MockSnapshotLister) ListSnapshots(ctx context.Context) ([]*domain.Account, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListSnapshots", ctx)
	ret0, _ := ret[0].([]*domain.Account)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListSnapshots indicates an expected call of ListSnapshots.
func (mr *MockSnapshotListerMockRecorder) ListSnapshots(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListSnapshots", reflect.TypeOf((*MockSnapshotLister)(nil).ListSnapshots), ctx)
}

// MockReportStore is a mock of ReportStore interface.
type MockReportStore struct {
	ctrl     *gomock.Controller
	recorder *MockReportStoreMockRecorder
	isgomock struct{}
}

// MockReportStoreMockRecorder is the mock recorder for MockReportStore.
type MockReportStoreMockRecorder struct {
	mock *MockReportStore
}

// NewMockReportStore creates a new mock instance.
func NewMockReportStore(ctrl *gomock.Controller) *MockReportStore {
	mock := &MockReportStore{ctrl: ctrl}
	mock.recorder = &MockReportStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockReportStore) EXPECT() *MockReportStoreMockRecorder {
	return m.recorder
}

// GetSnapshot mocks base method.
func (m *MockReportStore) GetSnapshot(ctx context.Context, clientID uint16) (*domain.Account, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSnapshot", ctx, clientID)
	ret0, _ := ret[0].(*domain.Account)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSnapshot indicates an expected call of GetSnapshot.
func (mr *MockReportStoreMockRecorder) GetSnapshot(ctx, clientID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSnapshot", reflect.TypeOf((*MockReportStore)(nil).GetSnapshot), ctx, clientID)
}

// GetTransaction mocks base method.
func (m *MockReportStore) GetTransaction(ctx context.Context, id uint32) (*domain.Transaction, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetTransaction", ctx, id)
	ret0, _ := ret[0].(*domain.Transaction)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetTransaction indicates an expected call of GetTransaction.
func (mr *MockReportStoreMockRecorder) GetTransaction(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetTransaction", reflect.TypeOf((*MockReportStore)(nil).GetTransaction), ctx, id)
}

// ListSnapshots mocks base method.
func (m *MockReportStore) ListSnapshots(ctx context.Context) ([]*domain.Account, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListSnapshots", ctx)
	ret0, _ := ret[0].([]*domain.Account)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListSnapshots indicates an expected call of ListSnapshots.
func (mr *MockReportStoreMockRecorder) ListSnapshots(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListSnapshots", reflect.TypeOf((*MockReportStore)(nil).ListSnapshots), ctx)
}

// PutSnapshot mocks base method.
func (m *MockReportStore) PutSnapshot(ctx context.Context, account *domain.Account) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PutSnapshot", ctx, account)
	ret0, _ := ret[0].(error)
	return ret0
}

// PutSnapshot indicates an expected call of PutSnapshot.
func (mr *MockReportStoreMockRecorder) PutSnapshot(ctx, account any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PutSnapshot", reflect.TypeOf((*MockReportStore)(nil).PutSnapshot), ctx, account)
}

// PutTransaction mocks base method.
func (m *MockReportStore) PutTransaction(ctx context.Context, tx *domain.Transaction) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PutTransaction", ctx, tx)
	ret0, _ := ret[0].(error)
	return ret0
}

// PutTransaction indicates an expected call of PutTransaction.
func (mr *MockReportStoreMockRecorder) PutTransaction(ctx, tx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PutTransaction", reflect.TypeOf((*MockReportStore)(nil).PutTransaction), ctx, tx)
}

// MockPinger is a mock of Pinger interface.
type MockPinger struct {
	ctrl     *gomock.Controller
	recorder *MockPingerMockRecorder
	isgomock struct{}
}

// MockPingerMockRecorder is the mock recorder for MockPinger.
type MockPingerMockRecorder struct {
	mock *MockPinger
}

// NewMockPinger creates a new mock instance.
func NewMockPinger(ctrl *gomock.Controller) *MockPinger {
	mock := &MockPinger{ctrl: ctrl}
	mock.recorder = &MockPingerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPinger) EXPECT() *MockPingerMockRecorder {
	return m.recorder
}

// Ping mocks base method.
func (m *MockPinger) Ping(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Ping", ctx)
	ret0, _ := ret[0].(error)
	return ret0
}

// Ping indicates an expected call of Ping.
func (mr *MockPingerMockRecorder) Ping(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Ping", reflect.TypeOf((*MockPinger)(nil).Ping), ctx)
}

// MockIDGenerator is a mock of IDGenerator interface.
type MockIDGenerator struct {
	ctrl     *gomock.Controller
	recorder *MockIDGeneratorMockRecorder
	isgomock struct{}
}

// MockIDGeneratorMockRecorder is the mock recorder for MockIDGenerator.
type MockIDGeneratorMockRecorder struct {
	mock *MockIDGenerator
}

// NewMockIDGenerator creates a new mock instance.
func NewMockIDGenerator(ctrl *gomock.Controller) *MockIDGenerator {
	mock := &MockIDGenerator{ctrl: ctrl}
	mock.recorder = &MockIDGeneratorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockIDGenerator) EXPECT() *MockIDGeneratorMockRecorder {
	return m.recorder
}

// Generate mocks base method.
func (m *MockIDGenerator) Generate() string {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Generate")
	ret0, _ := ret[0].(string)
	return ret0
}

// Generate indicates an expected call of Generate.
func (mr *MockIDGeneratorMockRecorder) Generate() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Generate", reflect.TypeOf((*MockIDGenerator)(nil).Generate))
}
