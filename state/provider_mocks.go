// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	context "context"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockProvider is a mock of Provider interface.
type MockProvider struct {
	ctrl     *gomock.Controller
	recorder *MockProviderMockRecorder
}

// MockProviderMockRecorder is the mock recorder for MockProvider.
type MockProviderMockRecorder struct {
	mock *MockProvider
}

// NewMockProvider creates a new mock instance.
func NewMockProvider(ctrl *gomock.Controller) *MockProvider {
	mock := &MockProvider{ctrl: ctrl}
	mock.recorder = &MockProviderMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockProvider) EXPECT() *MockProviderMockRecorder {
	return m.recorder
}

// GetLastBlockHeight mocks base method.
func (m *MockProvider) GetLastBlockHeight() (uint64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetLastBlockHeight")
	ret0, _ := ret[0].(uint64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetLastBlockHeight indicates an expected call of GetLastBlockHeight.
func (mr *MockProviderMockRecorder) GetLastBlockHeight() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetLastBlockHeight", reflect.TypeOf((*MockProvider)(nil).GetLastBlockHeight))
}

// GetWorld mocks base method.
func (m *MockProvider) GetWorld(ctx context.Context, block uint64) (*World, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetWorld", ctx, block)
	ret0, _ := ret[0].(*World)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetWorld indicates an expected call of GetWorld.
func (mr *MockProviderMockRecorder) GetWorld(ctx, block any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetWorld", reflect.TypeOf((*MockProvider)(nil).GetWorld), ctx, block)
}
