package commands

import (
	"context"

	"github.com/spf13/cobra"
)

func newExportCommand(flags *rootFlags) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a year of the ledger as CSV to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				return a.ledger.Export(ctx, cmd.OutOrStdout(), a.userID, year)
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "year to export")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}
