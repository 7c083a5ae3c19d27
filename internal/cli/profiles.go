package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harun/browserd/pkg/profile"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List known browser profiles",
	Long: `List browser profiles. When the profile catalog exists its open history
is shown, otherwise the profile directories on disk are listed.`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if cfg.Profiles.Catalog != "" {
		if _, err := os.Stat(cfg.Profiles.Catalog); err == nil {
			catalog, err := profile.OpenCatalog(cfg.Profiles.Catalog)
			if err != nil {
				return fmt.Errorf("failed to open profile catalog: %w", err)
			}
			defer catalog.Close()

			entries, err := catalog.List(commandContext(cmd))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tLAST OPENED\tOPENS")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					e.ID,
					e.CreatedAt.UTC().Format(time.RFC3339),
					e.LastOpenedAt.UTC().Format(time.RFC3339),
					e.OpenCount)
			}
			return w.Flush()
		}
	}

	if _, err := os.Stat(cfg.Profiles.Dir); os.IsNotExist(err) {
		fmt.Fprintln(out, "No profiles")
		return nil
	}

	store, err := profile.NewStore(cfg.Profiles.Dir)
	if err != nil {
		return err
	}
	ids, err := store.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No profiles")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}
