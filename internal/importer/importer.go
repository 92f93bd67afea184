// Package importer turns delimited bank export lines into transaction drafts
// and hands them to the ledger as one batch.
package importer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
)

// Ledger persists a batch of drafts atomically.
type Ledger interface {
	AddBatch(ctx context.Context, drafts []model.Draft, userID string) ([]string, error)
}

// Accounts looks up import account configs.
type Accounts interface {
	Get(id string) (model.AccountConfig, bool)
}

// ErrUnknownAccount is returned when the import names an unconfigured account.
var ErrUnknownAccount = errors.New("unknown account")

// Result summarizes one import.
type Result struct {
	Lines    int
	Imported int
	Ignored  int
	IDs      []string
}

// Importer decodes import files for an account and stores them.
type Importer struct {
	ledger   Ledger
	accounts Accounts
	engine   rules.Engine
	log      zerolog.Logger
}

// New creates an Importer.
func New(ledger Ledger, accounts Accounts, engine rules.Engine, log zerolog.Logger) *Importer {
	return &Importer{ledger: ledger, accounts: accounts, engine: engine, log: log}
}

// Import reads r line by line. Header lines and blank lines are skipped,
// lines matching an ignore rule are dropped, and every remaining line is
// added in one batch. Any decode failure aborts the import before anything
// is stored.
func (im *Importer) Import(ctx context.Context, r io.Reader, accountID, userID string) (Result, error) {
	cfg, ok := im.accounts.Get(accountID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	if len(cfg.FileFields) == 0 {
		return Result{}, fmt.Errorf("account %s has no file layout", accountID)
	}

	log := im.log.With().Str("account", accountID).Str("user", userID).Logger()

	var (
		res    Result
		drafts []model.Draft
		lineNo int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		if lineNo <= cfg.HeaderLines {
			continue
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		res.Lines++

		fields, err := Decode(line, cfg)
		if err != nil {
			var fm *FormatMismatchError
			if errors.As(err, &fm) {
				fm.Line = lineNo
			}
			return Result{}, fmt.Errorf("importing %s: %w", accountID, err)
		}
		draft, err := BuildDraft(fields, cfg)
		if err != nil {
			return Result{}, fmt.Errorf("importing %s: line %d: %w", accountID, lineNo, err)
		}
		if im.engine.ApplyIgnoreRules(cfg.IgnoreOps, rules.RecordForDraft(draft)) {
			res.Ignored++
			log.Debug().Int("line", lineNo).Str("description", draft.Description).Msg("line ignored by rule")
			continue
		}
		drafts = append(drafts, draft)
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("reading import: %w", err)
	}

	if len(drafts) > 0 {
		ids, err := im.ledger.AddBatch(ctx, drafts, userID)
		if err != nil {
			return Result{}, fmt.Errorf("importing %s: %w", accountID, err)
		}
		res.IDs = ids
		res.Imported = len(ids)
	}

	log.Info().Int("lines", res.Lines).Int("imported", res.Imported).Int("ignored", res.Ignored).Msg("import complete")
	return res, nil
}
