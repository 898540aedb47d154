// Package mocks provides test doubles for the lookup client.
package mocks

import (
	"context"

	lookup "github.com/artepuradesign/apipainellovable/pkg/lookup"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// SearchByName provides a mock function with given fields: ctx, req
func (_m *MockClient) SearchByName(ctx context.Context, req lookup.Request) (*lookup.Response, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for SearchByName")
	}

	var r0 *lookup.Response
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, lookup.Request) (*lookup.Response, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, lookup.Request) *lookup.Response); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*lookup.Response)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, lookup.Request) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

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
