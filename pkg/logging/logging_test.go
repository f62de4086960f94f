package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		verbose, quiet bool
		want           zapcore.Level
	}{
		{false, false, zapcore.InfoLevel},
		{true, false, zapcore.DebugLevel},
		{false, true, zapcore.WarnLevel},
		{true, true, zapcore.DebugLevel},
	}
	for _, tc := range cases {
		logger, err := New(tc.verbose, tc.quiet)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(tc.want), "level %s should be enabled", tc.want)
		if tc.want > zapcore.DebugLevel {
			assert.False(t, logger.Core().Enabled(tc.want-1), "level %s should be disabled", tc.want-1)
		}
	}
}
