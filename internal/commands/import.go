package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/logger"
)

func newImportCommand(flags *rootFlags) *cobra.Command {
	var (
		accountID string
		scan      bool
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a bank export file, or every file waiting in the import directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if scan == (len(args) == 1) {
				return errors.New("pass either a file or --scan")
			}
			if !scan && accountID == "" {
				return errors.New("--account is required when importing a file")
			}

			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if scan {
					return runImportScan(ctx, cmd, a)
				}
				return runImportFile(ctx, cmd, a, args[0], accountID)
			})
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id the file belongs to")
	cmd.Flags().BoolVar(&scan, "scan", false, "import every <import dir>/<account>/*.csv")

	return cmd
}

func runImportFile(ctx context.Context, cmd *cobra.Command, a *app, path, accountID string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening import: %w", err)
	}
	defer f.Close()

	res, err := a.importer().Import(ctx, f, accountID, a.userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: imported %d, ignored %d\n", path, res.Imported, res.Ignored)
	return nil
}

func runImportScan(ctx context.Context, cmd *cobra.Command, a *app) error {
	files, err := importer.Scan(a.cfg.Import.Dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No files to import.")
		return nil
	}

	imp := a.importer()
	for _, file := range files {
		log := logger.WithFields(logger.FromContext(ctx), map[string]any{"file": file.Name, "account": file.AccountID})

		res, err := importOne(ctx, imp, file, a.userID)
		if err != nil {
			return err
		}
		if err := importer.MarkProcessed(a.cfg.Import.Dir, file); err != nil {
			return err
		}
		log.Debug().Int64("bytes", file.Size).Msg("moved to processed")
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: imported %d, ignored %d\n", file.AccountID, file.Name, res.Imported, res.Ignored)
	}
	return nil
}

func importOne(ctx context.Context, imp *importer.Importer, file importer.FileInfo, userID string) (importer.Result, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return importer.Result{}, fmt.Errorf("opening import: %w", err)
	}
	defer f.Close()
	return imp.Import(ctx, f, file.AccountID, userID)
}
