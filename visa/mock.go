package visa

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockSession implements the Session interface for testing.
//
// Read expectations that should deliver bytes use Run to fill the buffer:
//
//	s.On("Read", mock.Anything).Run(func(args mock.Arguments) {
//	    copy(args.Get(0).([]byte), "TEK,MSO54\n")
//	}).Return(10, nil)
type MockSession struct {
	mock.Mock
}

var _ Session = (*MockSession)(nil)

func NewMockSession() *MockSession {
	return &MockSession{}
}

func (m *MockSession) Read(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSession) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSession) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSession) SetTimeout(d time.Duration) error {
	args := m.Called(d)
	return args.Error(0)
}
