package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
)

// draftFlags are the transaction fields shared by add and edit.
type draftFlags struct {
	amount      string
	txType      string
	date        string
	accountID   string
	description string
	tags        []string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount, a positive decimal")
	cmd.Flags().StringVar(&f.txType, "type", "", "income or expense")
	cmd.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD")
	cmd.Flags().StringVar(&f.accountID, "account", "", "account id")
	cmd.Flags().StringVar(&f.description, "desc", "", "description")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "manual tag (repeatable)")
}

// apply overwrites the fields of d whose flags were set on cmd.
func (f *draftFlags) apply(cmd *cobra.Command, d *model.Draft) error {
	changed := cmd.Flags().Changed
	if changed("amount") {
		amt, err := decimal.NewFromString(f.amount)
		if err != nil {
			return fmt.Errorf("invalid --amount %q", f.amount)
		}
		d.Amount = amt
	}
	if changed("type") {
		t, ok := model.ParseTransactionType(f.txType)
		if !ok {
			return fmt.Errorf("invalid --type %q (want income or expense)", f.txType)
		}
		d.Type = t
	}
	if changed("date") {
		date, err := time.Parse(time.DateOnly, f.date)
		if err != nil {
			return fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", f.date)
		}
		d.Date = date
	}
	if changed("account") {
		d.AccountID = f.accountID
	}
	if changed("desc") {
		d.Description = f.description
	}
	if changed("tag") {
		d.Tags = f.tags
	}
	return nil
}

func newAddCommand(flags *rootFlags) *cobra.Command {
	df := &draftFlags{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction by hand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var d model.Draft
			if err := df.apply(cmd, &d); err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				txID, err := a.ledger.Add(ctx, d, a.userID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), txID)
				return nil
			})
		},
	}

	df.register(cmd)
	for _, name := range []string{"amount", "type", "date", "account"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newEditCommand(flags *rootFlags) *cobra.Command {
	df := &draftFlags{}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a stored transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !id.Valid(args[0]) {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				old, err := a.ledger.Get(ctx, args[0], a.userID)
				if err != nil {
					return err
				}

				d := model.Draft{
					Amount:      old.Amount,
					Type:        old.Type,
					Date:        old.Date,
					Tags:        old.ManualTags,
					AccountID:   old.AccountID,
					Description: old.Description,
					Fields:      old.Fields,
				}
				if err := df.apply(cmd, &d); err != nil {
					return err
				}

				if err := a.ledger.Update(ctx, old, d, a.userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", old.ID)
				return nil
			})
		},
	}

	df.register(cmd)
	return cmd
}

func newDeleteCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction and reverse its rollups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !id.Valid(args[0]) {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.ledger.Delete(ctx, args[0], a.userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
