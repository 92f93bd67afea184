package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

func newStatsCommand(flags *rootFlags) *cobra.Command {
	var (
		dimension string
		year      int
		value     string
		monthly   bool
	)

	cmd := &cobra.Command{
		Use:   "stats [key]",
		Short: "Show rollup totals",
		Long: `Show rollup totals, filtered by flags or by a single rollup key such as
tag:food@2025, type:Expense@2025, account:cash@2025 or user@2025.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := store.RollupQuery{Year: year, Value: value}
			if dimension != "" {
				d, err := model.ParseDimension(dimension)
				if err != nil {
					return err
				}
				q.Dimension = d
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				q.UserID = a.userID
				if len(args) == 1 {
					k, err := id.ParseRollupKey(args[0], a.userID)
					if err != nil {
						return err
					}
					q = store.RollupQuery{UserID: k.UserID, Year: k.Year, Dimension: k.Dimension, Value: k.Value}
				}
				recs, err := a.db.Rollups(ctx, q)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No rollups.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "DIMENSION\tVALUE\tYEAR\tTOTAL")
				for _, r := range recs {
					v := r.Key.Value
					if v == "" {
						v = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Key.Dimension, v, r.Key.Year, r.YearlyTotal.StringFixed(2))
					if monthly {
						for _, b := range r.Monthly {
							fmt.Fprintf(w, "\t\t%s\t%s\n", time.Month(b.Month).String()[:3], b.Total.StringFixed(2))
						}
					}
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&dimension, "dimension", "", "tag, type, account or user")
	cmd.Flags().IntVar(&year, "year", 0, "year (default all)")
	cmd.Flags().StringVar(&value, "value", "", "dimension value, e.g. a tag")
	cmd.Flags().BoolVar(&monthly, "monthly", false, "show month buckets")

	return cmd
}
