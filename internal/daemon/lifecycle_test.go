package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/harun/browserd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleManager(t *testing.T) {
	d := createTestDaemon(t)
	defer d.closeCoreModules()

	lm := NewLifecycleManager(d.Daemon)
	assert.NotNil(t, lm)
	assert.Equal(t, d.Daemon, lm.daemon)
	assert.Equal(t, filepath.Join(d.dir, "browserd.pid"), lm.PIDFile())
}

func TestLifecycleManagerStartStop(t *testing.T) {
	d := createTestDaemon(t)
	defer d.closeCoreModules()

	lm := NewLifecycleManager(d.Daemon)

	require.NoError(t, lm.Start())
	_, err := os.Stat(lm.PIDFile())
	assert.NoError(t, err)

	pid, err := ReadPID(lm.PIDFile())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, lm.Stop())
	_, err = os.Stat(lm.PIDFile())
	assert.True(t, os.IsNotExist(err))
}

func TestLifecycleManagerDisabled(t *testing.T) {
	d := createTestDaemon(t, func(cfg *config.Config, opts *Options) {
		cfg.Server.PIDFile = ""
	})
	defer d.closeCoreModules()

	lm := NewLifecycleManager(d.Daemon)
	assert.Empty(t, lm.PIDFile())
	assert.NoError(t, lm.Start())
	assert.NoError(t, lm.Stop())
}

func TestLifecycleManagerReplacesStalePID(t *testing.T) {
	d := createTestDaemon(t)
	defer d.closeCoreModules()

	lm := NewLifecycleManager(d.Daemon)
	require.NoError(t, os.WriteFile(lm.PIDFile(), []byte("not-a-pid"), 0644))

	require.NoError(t, lm.Start())
	defer lm.Stop()

	pid, err := ReadPID(lm.PIDFile())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPID(filepath.Join(dir, "missing.pid"))
	assert.Error(t, err)

	path := filepath.Join(dir, "ok.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(4242)+"\n"), 0644))
	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, ProcessAlive(os.Getpid()))
	assert.False(t, ProcessAlive(0))
	assert.False(t, ProcessAlive(-1))
}

func TestSignalStopWithoutDaemon(t *testing.T) {
	_, err := SignalStop(filepath.Join(t.TempDir(), "browserd.pid"), 0)
	assert.Error(t, err)
}
