package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/recalc"
	"github.com/cleared-dev/tally/internal/rules"
	"github.com/cleared-dev/tally/internal/store"
)

// app holds the services a command runs against.
type app struct {
	cfg      config.Config
	userID   string
	log      zerolog.Logger
	db       *store.DB
	accounts *accounts.Service
	engine   rules.Engine
	ledger   *ledger.Service
}

// openApp loads the config named by --config, opens the database and wires
// the ledger. The caller must close the app.
func openApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no config at %s (run tally init first)", flags.configPath)
	}
	if err != nil {
		return nil, err
	}

	userID := flags.userID
	if userID == "" {
		userID = cfg.User.ID
	}
	if userID == "" {
		return nil, errors.New("no user: pass --user or set user.id in the config")
	}

	log := logger.WithFields(logger.New(cfg.Log.Level), map[string]any{"user": userID})
	cmd.SetContext(logger.WithContext(cmd.Context(), log))

	accts, err := accounts.Load(cfg.Accounts.Path)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	engine := rules.Engine{CaseInsensitive: cfg.Rules.CaseInsensitive}
	return &app{
		cfg:      cfg,
		userID:   userID,
		log:      log,
		db:       db,
		accounts: accts,
		engine:   engine,
		ledger:   ledger.NewService(db, accts, engine, log),
	}, nil
}

func (a *app) importer() *importer.Importer {
	return importer.New(a.ledger, a.accounts, a.engine, a.log)
}

func (a *app) recalcJob(dryRun bool) *recalc.Job {
	opts := recalc.Options{BatchSize: a.cfg.Recalc.BatchSize, DryRun: dryRun}
	return recalc.NewJob(a.db, a.accounts, a.engine, opts, a.log)
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing database")
	}
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, flags)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(cmd.Context(), a)
}
