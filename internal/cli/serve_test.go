package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/browserd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeRejectsInvalidConfig(t *testing.T) {
	path := writeTestConfig(t, func(cfg *config.Config) {
		cfg.Defaults.WaitUntil = "whenever"
	})

	_, err := execute(t, "--config", path, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid wait condition")
}

func TestServeRejectsInvalidLogLevel(t *testing.T) {
	path := writeTestConfig(t)

	_, err := execute(t, "--config", path, "--log-level", "chatty", "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Logging.Console = false
	cfg.Logging.File = filepath.Join(dir, "logs", "browserd.log")
	cfg.Logging.Level = "debug"

	log, err := newLogger(cfg)
	require.NoError(t, err)

	root := log.Root()
	root.Debug().Str("email", "a@example.com").Msg("hello")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(cfg.Logging.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.NotContains(t, string(data), "a@example.com")
}
