package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockHealthChecker is a mock type for the ports.HealthChecker type.
type MockHealthChecker struct {
	mock.Mock
}

// MockHealthChecker_Expecter provides typed expectations.
type MockHealthChecker_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the typed expecter.
func (_m *MockHealthChecker) EXPECT() *MockHealthChecker_Expecter {
	return &MockHealthChecker_Expecter{mock: &_m.Mock}
}

// Name provides a mock function with no fields.
func (_m *MockHealthChecker) Name() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Name")
	}

	return ret.String(0)
}

// MockHealthChecker_Name_Call wraps mock.Call for Name.
type MockHealthChecker_Name_Call struct {
	*mock.Call
}

// Name is a helper method to define mock.On call.
func (_e *MockHealthChecker_Expecter) Name() *MockHealthChecker_Name_Call {
	return &MockHealthChecker_Name_Call{Call: _e.mock.On("Name")}
}

// Return sets the return values.
func (_c *MockHealthChecker_Name_Call) Return(name string) *MockHealthChecker_Name_Call {
	_c.Call.Return(name)
	return _c
}

// Check provides a mock function with given fields: ctx.
func (_m *MockHealthChecker) Check(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Check")
	}

	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		return rf(ctx)
	}

	return ret.Error(0)
}

// MockHealthChecker_Check_Call wraps mock.Call for Check.
type MockHealthChecker_Check_Call struct {
	*mock.Call
}

// Check is a helper method to define mock.On call.
func (_e *MockHealthChecker_Expecter) Check(ctx any) *MockHealthChecker_Check_Call {
	return &MockHealthChecker_Check_Call{Call: _e.mock.On("Check", ctx)}
}

// Return sets the return values.
func (_c *MockHealthChecker_Check_Call) Return(err error) *MockHealthChecker_Check_Call {
	_c.Call.Return(err)
	return _c
}

// NewMockHealthChecker creates a new instance of MockHealthChecker. It also
// registers a cleanup function to assert the mocks expectations.
func NewMockHealthChecker(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockHealthChecker {
	m := &MockHealthChecker{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
