// Package mocks provides test doubles for the store.
package mocks

import (
	"context"

	model "github.com/artepuradesign/apipainellovable/internal/model"
	store "github.com/artepuradesign/apipainellovable/internal/store"
	mock "github.com/stretchr/testify/mock"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateConsultation provides a mock function with given fields: ctx, rec
func (_m *MockStore) CreateConsultation(ctx context.Context, rec *model.ConsultationRecord) error {
	ret := _m.Called(ctx, rec)

	if len(ret) == 0 {
		panic("no return value specified for CreateConsultation")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.ConsultationRecord) error); ok {
		r0 = rf(ctx, rec)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetConsultation provides a mock function with given fields: ctx, id
func (_m *MockStore) GetConsultation(ctx context.Context, id string) (*model.ConsultationRecord, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetConsultation")
	}

	var r0 *model.ConsultationRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.ConsultationRecord, error)); ok {
		return rf(ctx, id)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ConsultationRecord)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// ListConsultations provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListConsultations(ctx context.Context, filter store.ListFilter) ([]model.ConsultationRecord, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListConsultations")
	}

	var r0 []model.ConsultationRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, store.ListFilter) ([]model.ConsultationRecord, error)); ok {
		return rf(ctx, filter)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.ConsultationRecord)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// ImportConsultations provides a mock function with given fields: ctx, recs
func (_m *MockStore) ImportConsultations(ctx context.Context, recs []model.ConsultationRecord) (int, error) {
	ret := _m.Called(ctx, recs)

	if len(ret) == 0 {
		panic("no return value specified for ImportConsultations")
	}

	var r0 int
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []model.ConsultationRecord) (int, error)); ok {
		return rf(ctx, recs)
	}
	r0 = ret.Int(0)
	r1 = ret.Error(1)

	return r0, r1
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}

	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
