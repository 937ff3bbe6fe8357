package transport

import (
	"context"
	"net/url"

	"github.com/stretchr/testify/mock"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Emit(data []byte, isBinary bool) error {
	args := m.Called(data, isBinary)
	return args.Error(0)
}

func (m *MockTransport) Poll(ctx context.Context) ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockTransport) BaseUrl() *url.URL {
	args := m.Called()
	return args.Get(0).(*url.URL)
}

func (m *MockTransport) SetBaseUrl(rawUrl string) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTransport) Upgrade(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
