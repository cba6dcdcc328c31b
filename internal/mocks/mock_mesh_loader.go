package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// MockMeshLoader is a mock type for the ports.MeshLoader type.
type MockMeshLoader struct {
	mock.Mock
}

// MockMeshLoader_Expecter provides typed expectations.
type MockMeshLoader_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the typed expecter.
func (_m *MockMeshLoader) EXPECT() *MockMeshLoader_Expecter {
	return &MockMeshLoader_Expecter{mock: &_m.Mock}
}

// Load provides a mock function with given fields: ctx, path.
func (_m *MockMeshLoader) Load(ctx context.Context, path string) (*domain.Mesh, error) {
	ret := _m.Called(ctx, path)

	if len(ret) == 0 {
		panic("no return value specified for Load")
	}

	var r0 *domain.Mesh
	if rf, ok := ret.Get(0).(func(context.Context, string) *domain.Mesh); ok {
		r0 = rf(ctx, path)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Mesh)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, path)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// MockMeshLoader_Load_Call wraps mock.Call for Load.
type MockMeshLoader_Load_Call struct {
	*mock.Call
}

// Load is a helper method to define mock.On call.
func (_e *MockMeshLoader_Expecter) Load(ctx any, path any) *MockMeshLoader_Load_Call {
	return &MockMeshLoader_Load_Call{Call: _e.mock.On("Load", ctx, path)}
}

// Return sets the return values.
func (_c *MockMeshLoader_Load_Call) Return(m *domain.Mesh, err error) *MockMeshLoader_Load_Call {
	_c.Call.Return(m, err)
	return _c
}

// NewMockMeshLoader creates a new instance of MockMeshLoader. It also
// registers a cleanup function to assert the mocks expectations.
func NewMockMeshLoader(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockMeshLoader {
	m := &MockMeshLoader{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
