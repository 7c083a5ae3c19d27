package cli

import (
	"path/filepath"
	"testing"

	"github.com/harun/browserd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDCommand(t *testing.T) {
	path := writeTestConfig(t)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	t.Run("prints id and profile path", func(t *testing.T) {
		output, err := execute(t, "--config", path, "id", "a@example.com")
		require.NoError(t, err)

		assert.Contains(t, output, "ID: 08168cd80dfd534a")
		assert.Contains(t, output, "Profile: "+filepath.Join(cfg.Profiles.Dir, "08168cd80dfd534a"))
		assert.NoDirExists(t, filepath.Join(cfg.Profiles.Dir, "08168cd80dfd534a"))
	})

	t.Run("case sensitive", func(t *testing.T) {
		output, err := execute(t, "--config", path, "id", "A@example.com")
		require.NoError(t, err)
		assert.Contains(t, output, "ID: d2b9f22857b3e599")
	})

	t.Run("requires an email", func(t *testing.T) {
		_, err := execute(t, "--config", path, "id")
		assert.Error(t, err)

		_, err = execute(t, "--config", path, "id", " ")
		assert.Error(t, err)
	})
}
