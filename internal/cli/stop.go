package cli

import (
	"fmt"
	"time"

	"github.com/harun/browserd/internal/daemon"
	"github.com/spf13/cobra"
)

var stopTimeout int

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running browser service",
	Long: `Stop a running browser service gracefully.
Sends SIGTERM to the process recorded in server.pid_file and waits for it to
close its sessions, sending SIGKILL after the timeout.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "timeout in seconds to wait for the service to stop")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.PIDFile == "" {
		return fmt.Errorf("server.pid_file is not configured")
	}

	killed, err := daemon.SignalStop(cfg.Server.PIDFile, time.Duration(stopTimeout)*time.Second)
	if err != nil {
		return err
	}

	if killed {
		fmt.Fprintln(cmd.OutOrStdout(), "Timeout reached, service killed")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Service stopped successfully")
	return nil
}
