package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/buildinfo"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	userID     string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Transaction ledger with incremental yearly rollups",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "tally.yaml", "path to tally.yaml")
	rootCmd.PersistentFlags().StringVar(&flags.userID, "user", "", "user id (defaults to user.id in the config)")

	rootCmd.AddCommand(
		newInitCommand(flags),
		newImportCommand(flags),
		newAddCommand(flags),
		newEditCommand(flags),
		newDeleteCommand(flags),
		newRecalcCommand(flags),
		newStatsCommand(flags),
		newExportCommand(flags),
	)

	return rootCmd
}
