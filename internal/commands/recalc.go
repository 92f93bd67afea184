package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/id"
)

func newRecalcCommand(flags *rootFlags) *cobra.Command {
	var (
		years  []int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Rebuild rollups from the ledger, re-deriving rule tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				sum, err := a.recalcJob(dryRun).Run(ctx, a.userID, years)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if sum.DryRun {
					fmt.Fprint(out, "Dry run: ")
				}
				fmt.Fprintf(out, "%d years, %d transactions, %d rollup records, %d retagged\n",
					len(sum.UpdatedYears), sum.Transactions, sum.Records, sum.RetaggedTransactions)
				for _, k := range sum.Drifted {
					fmt.Fprintf(out, "drifted: %s\n", id.FormatRollupKey(k))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntSliceVar(&years, "year", nil, "year to rebuild (repeatable, default every year with data)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute without writing")

	return cmd
}
