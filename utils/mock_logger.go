package utils

import "github.com/stretchr/testify/mock"

// MockLogger is a testify-backed Logger for asserting on log activity in tests.
type MockLogger struct {
	mock.Mock
	ErrorCallCount   int
	LastErrorMessage string
	WarnCallCount    int
	LastWarnMessage  string
}

// NewMockLogger returns a MockLogger with no expectations set.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.WarnCallCount++
	m.LastWarnMessage = msg
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.ErrorCallCount++
	m.LastErrorMessage = msg
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level LogLevel) {
	m.Called(level)
}
