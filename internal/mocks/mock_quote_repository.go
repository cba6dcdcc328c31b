package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// MockQuoteRepository is a mock type for the ports.QuoteRepository type.
type MockQuoteRepository struct {
	mock.Mock
}

// MockQuoteRepository_Expecter provides typed expectations.
type MockQuoteRepository_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the typed expecter.
func (_m *MockQuoteRepository) EXPECT() *MockQuoteRepository_Expecter {
	return &MockQuoteRepository_Expecter{mock: &_m.Mock}
}

// Get provides a mock function with given fields: ctx, id.
func (_m *MockQuoteRepository) Get(ctx context.Context, id string) (*domain.Quote, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for Get")
	}

	var r0 *domain.Quote
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.Quote); ok {
		r0 = rf(ctx, id)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Quote)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// MockQuoteRepository_Get_Call wraps mock.Call for Get.
type MockQuoteRepository_Get_Call struct {
	*mock.Call
}

// Get is a helper method to define mock.On call.
func (_e *MockQuoteRepository_Expecter) Get(ctx any, id any) *MockQuoteRepository_Get_Call {
	return &MockQuoteRepository_Get_Call{Call: _e.mock.On("Get", ctx, id)}
}

// Return sets the return values.
func (_c *MockQuoteRepository_Get_Call) Return(q *domain.Quote, err error) *MockQuoteRepository_Get_Call {
	_c.Call.Return(q, err)
	return _c
}

// Save provides a mock function with given fields: ctx, q, expectedVersion.
func (_m *MockQuoteRepository) Save(ctx context.Context, q *domain.Quote, expectedVersion int64) error {
	ret := _m.Called(ctx, q, expectedVersion)

	if len(ret) == 0 {
		panic("no return value specified for Save")
	}

	if rf, ok := ret.Get(0).(func(context.Context, *domain.Quote, int64) error); ok {
		return rf(ctx, q, expectedVersion)
	}

	return ret.Error(0)
}

// MockQuoteRepository_Save_Call wraps mock.Call for Save.
type MockQuoteRepository_Save_Call struct {
	*mock.Call
}

// Save is a helper method to define mock.On call.
func (_e *MockQuoteRepository_Expecter) Save(ctx any, q any, expectedVersion any) *MockQuoteRepository_Save_Call {
	return &MockQuoteRepository_Save_Call{Call: _e.mock.On("Save", ctx, q, expectedVersion)}
}

// Run registers a function called with the arguments.
func (_c *MockQuoteRepository_Save_Call) Run(run func(ctx context.Context, q *domain.Quote, expectedVersion int64)) *MockQuoteRepository_Save_Call {
	_c.Call.Run(func(args mock.Arguments) {
		run(args[0].(context.Context), args[1].(*domain.Quote), args[2].(int64))
	})

	return _c
}

// Return sets the return values.
func (_c *MockQuoteRepository_Save_Call) Return(err error) *MockQuoteRepository_Save_Call {
	_c.Call.Return(err)
	return _c
}

// RunAndReturn sets a function computing the return value.
func (_c *MockQuoteRepository_Save_Call) RunAndReturn(run func(context.Context, *domain.Quote, int64) error) *MockQuoteRepository_Save_Call {
	_c.Call.Return(run)
	return _c
}

// Delete provides a mock function with given fields: ctx, id.
func (_m *MockQuoteRepository) Delete(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for Delete")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return rf(ctx, id)
	}

	return ret.Error(0)
}

// MockQuoteRepository_Delete_Call wraps mock.Call for Delete.
type MockQuoteRepository_Delete_Call struct {
	*mock.Call
}

// Delete is a helper method to define mock.On call.
func (_e *MockQuoteRepository_Expecter) Delete(ctx any, id any) *MockQuoteRepository_Delete_Call {
	return &MockQuoteRepository_Delete_Call{Call: _e.mock.On("Delete", ctx, id)}
}

// Return sets the return values.
func (_c *MockQuoteRepository_Delete_Call) Return(err error) *MockQuoteRepository_Delete_Call {
	_c.Call.Return(err)
	return _c
}

// List provides a mock function with given fields: ctx, filter.
func (_m *MockQuoteRepository) List(ctx context.Context, filter domain.QuoteFilter) ([]domain.QuoteSummary, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for List")
	}

	var r0 []domain.QuoteSummary
	if rf, ok := ret.Get(0).(func(context.Context, domain.QuoteFilter) []domain.QuoteSummary); ok {
		r0 = rf(ctx, filter)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.QuoteSummary)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, domain.QuoteFilter) error); ok {
		r1 = rf(ctx, filter)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// MockQuoteRepository_List_Call wraps mock.Call for List.
type MockQuoteRepository_List_Call struct {
	*mock.Call
}

// List is a helper method to define mock.On call.
func (_e *MockQuoteRepository_Expecter) List(ctx any, filter any) *MockQuoteRepository_List_Call {
	return &MockQuoteRepository_List_Call{Call: _e.mock.On("List", ctx, filter)}
}

// Return sets the return values.
func (_c *MockQuoteRepository_List_Call) Return(summaries []domain.QuoteSummary, err error) *MockQuoteRepository_List_Call {
	_c.Call.Return(summaries, err)
	return _c
}

// NewMockQuoteRepository creates a new instance of MockQuoteRepository. It
// also registers a cleanup function to assert the mocks expectations.
func NewMockQuoteRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockQuoteRepository {
	m := &MockQuoteRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
