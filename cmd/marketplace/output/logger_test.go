package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogOutput(t *testing.T) {
	t.Run("writes to console and file", func(t *testing.T) {
		var console bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "logs", "app.log")

		out, err := newLogOutput(&console, "debug", logFile)
		require.NoError(t, err)

		out.Logger.Info().Str("component", "test").Msg("hello")
		require.NoError(t, out.Close())

		assert.Contains(t, console.String(), "hello")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"hello"`)
		assert.Contains(t, string(data), `"component":"test"`)
	})

	t.Run("level filters entries", func(t *testing.T) {
		var console bytes.Buffer
		out, err := newLogOutput(&console, "warn", "")
		require.NoError(t, err)

		out.Logger.Info().Msg("quiet")
		out.Logger.Warn().Msg("loud")

		assert.NotContains(t, console.String(), "quiet")
		assert.Contains(t, console.String(), "loud")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := newLogOutput(&bytes.Buffer{}, "chatty", "")
		assert.Error(t, err)
	})
}
