package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelUnmarshalText(t *testing.T) {
	tests := []struct {
		text  string
		level LogLevel
	}{
		{"OFF", LogLevelOff},
		{"error", LogLevelError},
		{"Warn", LogLevelWarn},
		{"INFO", LogLevelInfo},
		{"debug", LogLevelDebug},
	}
	for _, tt := range tests {
		var level LogLevel
		require.NoError(t, level.UnmarshalText([]byte(tt.text)))
		assert.Equal(t, tt.level, level)
	}

	var level LogLevel
	assert.Error(t, level.UnmarshalText([]byte("verbose")))
}

func TestLogLevelString(t *testing.T) {
	level := LogLevelInfo
	assert.Equal(t, "INFO", level.String())
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 0, CountWords("   "))
	assert.Equal(t, 4, CountWords("four words in here"))
	assert.Equal(t, 2, CountWords("  spaced \n out  "))
}

func TestMockLoggerTracksErrors(t *testing.T) {
	logger := NewMockLogger()
	logger.On("Error", "something broke", []any{"key", "value"}).Return()

	logger.Error("something broke", "key", "value")
	assert.Equal(t, 1, logger.ErrorCallCount)
	assert.Equal(t, "something broke", logger.LastErrorMessage)
	logger.AssertExpectations(t)
}
