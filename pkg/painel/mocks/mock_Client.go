// Package mocks provides test doubles for the painel client.
package mocks

import (
	"context"

	model "github.com/artepuradesign/apipainellovable/internal/model"
	painel "github.com/artepuradesign/apipainellovable/pkg/painel"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetBalance provides a mock function with given fields: ctx, token
func (_m *MockClient) GetBalance(ctx context.Context, token string) (model.BalanceState, error) {
	ret := _m.Called(ctx, token)

	if len(ret) == 0 {
		panic("no return value specified for GetBalance")
	}

	var r0 model.BalanceState
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (model.BalanceState, error)); ok {
		return rf(ctx, token)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) model.BalanceState); ok {
		r0 = rf(ctx, token)
	} else {
		r0 = ret.Get(0).(model.BalanceState)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, token)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetModule provides a mock function with given fields: ctx, token, id
func (_m *MockClient) GetModule(ctx context.Context, token string, id int) (*painel.Module, error) {
	ret := _m.Called(ctx, token, id)

	if len(ret) == 0 {
		panic("no return value specified for GetModule")
	}

	var r0 *painel.Module
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, int) (*painel.Module, error)); ok {
		return rf(ctx, token, id)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*painel.Module)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// GetSubscription provides a mock function with given fields: ctx, token
func (_m *MockClient) GetSubscription(ctx context.Context, token string) (*painel.Subscription, error) {
	ret := _m.Called(ctx, token)

	if len(ret) == 0 {
		panic("no return value specified for GetSubscription")
	}

	var r0 *painel.Subscription
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*painel.Subscription, error)); ok {
		return rf(ctx, token)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*painel.Subscription)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// CalculateDiscount provides a mock function with given fields: ctx, token, price
func (_m *MockClient) CalculateDiscount(ctx context.Context, token string, price model.Money) (*painel.Discount, error) {
	ret := _m.Called(ctx, token, price)

	if len(ret) == 0 {
		panic("no return value specified for CalculateDiscount")
	}

	var r0 *painel.Discount
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, model.Money) (*painel.Discount, error)); ok {
		return rf(ctx, token, price)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*painel.Discount)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
