package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/store"
)

const configFile = "tally.yaml"

func newInitCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tally project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			if flags.userID == "" {
				return errors.New("init requires --user")
			}

			if err := runInit(absDir, flags.userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized tally project at %s for user %s\n", absDir, flags.userID)
			return nil
		},
	}
	return cmd
}

func runInit(dir, userID string) error {
	cfgPath := filepath.Join(dir, configFile)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default(userID)
	defaults := accounts.DefaultConfigs()

	// One import directory per account with a file layout.
	dirs := []string{filepath.Join(cfg.Import.Dir, "processed")}
	for _, a := range defaults {
		if len(a.FileFields) > 0 {
			dirs = append(dirs, filepath.Join(cfg.Import.Dir, a.ID))
		}
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := accounts.NewService(defaults).Save(filepath.Join(dir, cfg.Accounts.Path)); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}

	if err := store.Migrate(filepath.Join(dir, cfg.Database.Path)); err != nil {
		return fmt.Errorf("creating database: %w", err)
	}

	gitignore := cfg.Database.Path + "\n" + filepath.Join(cfg.Import.Dir, "processed") + "/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
