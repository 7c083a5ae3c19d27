package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LifecycleManager manages the PID file of a running daemon
type LifecycleManager struct {
	daemon  *Daemon
	pidFile string
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(d *Daemon) *LifecycleManager {
	return &LifecycleManager{
		daemon:  d,
		pidFile: pidFilePath(d.config),
	}
}

// Start writes the PID file, refusing when another live daemon owns it
func (l *LifecycleManager) Start() error {
	if l.pidFile == "" {
		return nil
	}

	if pid, err := ReadPID(l.pidFile); err == nil && pid != os.Getpid() && ProcessAlive(pid) {
		return fmt.Errorf("daemon is already running with PID %d (PID file: %s)", pid, l.pidFile)
	}

	if err := os.MkdirAll(filepath.Dir(l.pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	// Write PID file
	if err := l.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	l.daemon.log.Info().
		Str("pid_file", l.pidFile).
		Int("pid", os.Getpid()).
		Msg("Lifecycle manager started")

	return nil
}

// Stop removes the PID file
func (l *LifecycleManager) Stop() error {
	if l.pidFile == "" {
		return nil
	}

	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	l.daemon.log.Info().Msg("Lifecycle manager stopped")

	return nil
}

// writePIDFile writes the current process ID to the PID file
func (l *LifecycleManager) writePIDFile() error {
	content := strconv.Itoa(os.Getpid())
	return os.WriteFile(l.pidFile, []byte(content), 0644)
}

// GetUptime returns the daemon uptime
func (l *LifecycleManager) GetUptime() time.Duration {
	return l.daemon.Status().Uptime
}

// PIDFile returns the PID file path, empty when disabled
func (l *LifecycleManager) PIDFile() string {
	return l.pidFile
}

// ReadPID reads the process ID stored in pidFile
func ReadPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}

	return pid, nil
}

// ProcessAlive reports whether a process with pid exists
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// SignalStop sends SIGTERM to the daemon recorded in pidFile and waits up to
// timeout for it to exit, escalating to SIGKILL.
func SignalStop(pidFile string, timeout time.Duration) (killed bool, err error) {
	pid, err := ReadPID(pidFile)
	if err != nil {
		return false, fmt.Errorf("daemon is not running: %w", err)
	}
	if !ProcessAlive(pid) {
		_ = os.Remove(pidFile)
		return false, fmt.Errorf("daemon is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return false, fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			_ = os.Remove(pidFile)
			return false, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := process.Signal(syscall.SIGKILL); err != nil {
		return false, fmt.Errorf("failed to send SIGKILL: %w", err)
	}
	_ = os.Remove(pidFile)
	return true, nil
}
