package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harun/browserd/pkg/session"
	"github.com/spf13/cobra"
)

var idCmd = &cobra.Command{
	Use:   "id <email>",
	Short: "Print the session identifier and profile path for an email",
	Long: `Print the session identifier derived from an email address and the
profile directory that session uses. Nothing is created.`,
	Args: cobra.ExactArgs(1),
	RunE: runID,
}

func init() {
	rootCmd.AddCommand(idCmd)
}

func runID(cmd *cobra.Command, args []string) error {
	email := args[0]
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	id := session.DeriveID(email)
	root, err := filepath.Abs(cfg.Profiles.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve profiles root: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID: %s\n", id)
	fmt.Fprintf(out, "Profile: %s\n", filepath.Join(root, id))
	return nil
}
