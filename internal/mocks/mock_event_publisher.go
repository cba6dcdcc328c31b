package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

// MockEventPublisher is a mock type for the ports.EventPublisher type.
type MockEventPublisher struct {
	mock.Mock
}

// MockEventPublisher_Expecter provides typed expectations.
type MockEventPublisher_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the typed expecter.
func (_m *MockEventPublisher) EXPECT() *MockEventPublisher_Expecter {
	return &MockEventPublisher_Expecter{mock: &_m.Mock}
}

// Publish provides a mock function with given fields: ctx, event.
func (_m *MockEventPublisher) Publish(ctx context.Context, event ports.Event) error {
	ret := _m.Called(ctx, event)

	if len(ret) == 0 {
		panic("no return value specified for Publish")
	}

	if rf, ok := ret.Get(0).(func(context.Context, ports.Event) error); ok {
		return rf(ctx, event)
	}

	return ret.Error(0)
}

// MockEventPublisher_Publish_Call wraps mock.Call for Publish.
type MockEventPublisher_Publish_Call struct {
	*mock.Call
}

// Publish is a helper method to define mock.On call.
func (_e *MockEventPublisher_Expecter) Publish(ctx any, event any) *MockEventPublisher_Publish_Call {
	return &MockEventPublisher_Publish_Call{Call: _e.mock.On("Publish", ctx, event)}
}

// Return sets the return values.
func (_c *MockEventPublisher_Publish_Call) Return(err error) *MockEventPublisher_Publish_Call {
	_c.Call.Return(err)
	return _c
}

// NewMockEventPublisher creates a new instance of MockEventPublisher. It also
// registers a cleanup function to assert the mocks expectations.
func NewMockEventPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockEventPublisher {
	m := &MockEventPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
