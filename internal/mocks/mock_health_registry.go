package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

// MockHealthRegistry is a mock type for the ports.HealthRegistry type.
type MockHealthRegistry struct {
	mock.Mock
}

// MockHealthRegistry_Expecter provides typed expectations.
type MockHealthRegistry_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the typed expecter.
func (_m *MockHealthRegistry) EXPECT() *MockHealthRegistry_Expecter {
	return &MockHealthRegistry_Expecter{mock: &_m.Mock}
}

// Register provides a mock function with given fields: checker.
func (_m *MockHealthRegistry) Register(checker ports.HealthChecker) error {
	ret := _m.Called(checker)

	if len(ret) == 0 {
		panic("no return value specified for Register")
	}

	if rf, ok := ret.Get(0).(func(ports.HealthChecker) error); ok {
		return rf(checker)
	}

	return ret.Error(0)
}

// MockHealthRegistry_Register_Call wraps mock.Call for Register.
type MockHealthRegistry_Register_Call struct {
	*mock.Call
}

// Register is a helper method to define mock.On call.
func (_e *MockHealthRegistry_Expecter) Register(checker any) *MockHealthRegistry_Register_Call {
	return &MockHealthRegistry_Register_Call{Call: _e.mock.On("Register", checker)}
}

// Return sets the return values.
func (_c *MockHealthRegistry_Register_Call) Return(err error) *MockHealthRegistry_Register_Call {
	_c.Call.Return(err)
	return _c
}

// CheckAll provides a mock function with given fields: ctx.
func (_m *MockHealthRegistry) CheckAll(ctx context.Context) *ports.HealthResult {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for CheckAll")
	}

	if rf, ok := ret.Get(0).(func(context.Context) *ports.HealthResult); ok {
		return rf(ctx)
	}

	if ret.Get(0) == nil {
		return nil
	}

	return ret.Get(0).(*ports.HealthResult)
}

// MockHealthRegistry_CheckAll_Call wraps mock.Call for CheckAll.
type MockHealthRegistry_CheckAll_Call struct {
	*mock.Call
}

// CheckAll is a helper method to define mock.On call.
func (_e *MockHealthRegistry_Expecter) CheckAll(ctx any) *MockHealthRegistry_CheckAll_Call {
	return &MockHealthRegistry_CheckAll_Call{Call: _e.mock.On("CheckAll", ctx)}
}

// Return sets the return values.
func (_c *MockHealthRegistry_CheckAll_Call) Return(result *ports.HealthResult) *MockHealthRegistry_CheckAll_Call {
	_c.Call.Return(result)
	return _c
}

// Maybe marks the call as optional.
func (_c *MockHealthRegistry_CheckAll_Call) Maybe() *MockHealthRegistry_CheckAll_Call {
	_c.Call.Maybe()
	return _c
}

// NewMockHealthRegistry creates a new instance of MockHealthRegistry. It also
// registers a cleanup function to assert the mocks expectations.
func NewMockHealthRegistry(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockHealthRegistry {
	m := &MockHealthRegistry{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
