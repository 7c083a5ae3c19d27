package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/harun/browserd/internal/config"
	"github.com/harun/browserd/internal/daemon"
	"github.com/harun/browserd/internal/logger"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser service",
	Long: `Run the browser service in the foreground.
The HTTP API listens on server.host:server.port (PORT overrides the port).
SIGINT or SIGTERM stops accepting requests and closes every session.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	// Hot reload only makes sense for a file that exists
	configPath := config.NewLoader(cfgFile).GetConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		cliLog := log.Component("cli")
		cliLog.Debug().Str("path", configPath).Msg("No config file, URL policy hot reload disabled")
		configPath = ""
	}

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize browserd: %w", err)
	}

	if err := d.Start(); err != nil {
		return err
	}

	return d.Wait(commandContext(cmd))
}

// newLogger builds the process logger from the logging section
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

// commandContext returns the command's context or a background one when the
// command runs outside ExecuteContext
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
