package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/browserd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureCommand(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "conf", "browserd.json")

	t.Run("writes defaults", func(t *testing.T) {
		output, err := execute(t, "--config", path, "configure")
		require.NoError(t, err)
		assert.Contains(t, output, "Configuration saved to "+path)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3000, cfg.Server.Port)
	})

	t.Run("keeps existing file", func(t *testing.T) {
		_, err := execute(t, "--config", path, "configure")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})

	t.Run("force overwrites with overrides", func(t *testing.T) {
		t.Setenv("BROWSERD_SERVER_PORT", "8181")

		_, err := execute(t, "--config", path, "configure", "--force")
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"port": 8181`)
	})
}
