package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/harun/browserd/internal/config"
	"github.com/harun/browserd/internal/daemon"
	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	Long:  `Show whether browserd is running, its PID, uptime and live session count.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "address of the service (default from server.host and server.port)")
	rootCmd.AddCommand(statusCmd)
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Uptime   int64  `json:"uptime"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	addr := statusAddr
	if addr == "" {
		addr = dialAddr(cfg.Server)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}
	defer resp.Body.Close()

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}

	fmt.Fprintf(out, "Status: running\n")
	fmt.Fprintf(out, "Address: %s\n", addr)
	if cfg.Server.PIDFile != "" {
		if pid, err := daemon.ReadPID(filepath.Clean(cfg.Server.PIDFile)); err == nil {
			fmt.Fprintf(out, "PID: %d\n", pid)
		}
	}
	fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Duration(health.Uptime)*time.Second))
	fmt.Fprintf(out, "Sessions: %d\n", health.Sessions)

	return nil
}

// dialAddr turns the listen address into one a local client can reach
func dialAddr(server config.ServerConfig) string {
	host := server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(server.Port))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
