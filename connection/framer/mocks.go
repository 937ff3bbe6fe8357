package framer

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockFramer struct {
	mock.Mock
}

func (m *MockFramer) Emit(data []byte, isBinary bool) error {
	args := m.Called(data, isBinary)
	return args.Error(0)
}

func (m *MockFramer) Poll(ctx context.Context) ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFramer) Upgrade(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockFramer) Close(reason error) {
	m.Called()
}

func (m *MockFramer) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(chan struct{})
}

func (m *MockFramer) Err() error {
	args := m.Called()
	return args.Error(0)
}
