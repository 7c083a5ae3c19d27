package cli

import (
	"fmt"
	"os"

	"github.com/harun/browserd/internal/config"
	"github.com/spf13/cobra"
)

var configureForce bool

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a config file with the default settings",
	Long: `Write the effective configuration (defaults plus environment overrides)
to the config file so it can be edited. Existing files are kept unless --force
is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&configureForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	path := loader.GetConfigPath()

	if _, err := os.Stat(path); err == nil && !configureForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Save configuration
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
	return nil
}
