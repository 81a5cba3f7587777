package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("production", func(t *testing.T) {
		logger, err := NewLogger("production")
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.False(t, logger.Core().Enabled(-1), "debug should be disabled in production")
	})

	t.Run("development", func(t *testing.T) {
		logger, err := NewLogger("development")
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.True(t, logger.Core().Enabled(-1), "debug should be enabled in development")
	})
}
