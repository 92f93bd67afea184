// Package recalc rebuilds a user's rollup records from the ledger, one year
// at a time, re-deriving rule tags on the way.
package recalc

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
	"github.com/cleared-dev/tally/internal/stats"
	"github.com/cleared-dev/tally/internal/store"
)

// DefaultBatchSize is the page size used when reading a year's transactions.
const DefaultBatchSize = 150

// Accounts looks up account configs for tag derivation.
type Accounts interface {
	Get(id string) (model.AccountConfig, bool)
}

// Options tune a Job.
type Options struct {
	BatchSize int
	DryRun    bool
}

// Summary reports what a run changed. With DryRun set nothing was written
// and the counts describe what would have been.
type Summary struct {
	UpdatedYears         []int
	RetaggedTransactions int
	Transactions         int
	Records              int
	// Drifted lists stored records that differed from the recomputed ones,
	// including stored records the ledger no longer supports.
	Drifted []model.RollupKey
	DryRun  bool
}

// Job recomputes rollups from scratch.
type Job struct {
	store    store.Store
	accounts Accounts
	engine   rules.Engine
	opts     Options
	log      zerolog.Logger
}

// NewJob creates a Job.
func NewJob(s store.Store, accounts Accounts, engine rules.Engine, opts Options, log zerolog.Logger) *Job {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Job{store: s, accounts: accounts, engine: engine, opts: opts, log: log}
}

type tagUpdate struct {
	id   string
	tags []string
}

type yearResult struct {
	records      []model.RollupRecord
	retag        []tagUpdate
	drifted      []model.RollupKey
	transactions int
}

// Run recomputes the given years, or every year with transactions or rollups
// when years is empty. Each year is replaced atomically. On failure the
// summary covers the years committed before it.
func (j *Job) Run(ctx context.Context, userID string, years []int) (Summary, error) {
	sum := Summary{DryRun: j.opts.DryRun}
	if userID == "" {
		return sum, fmt.Errorf("recalculating: user id is required")
	}

	if len(years) == 0 {
		var err error
		if years, err = j.knownYears(ctx, userID); err != nil {
			return sum, err
		}
	}
	years = uniqueSorted(years)

	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := j.compute(ctx, userID, year)
		if err != nil {
			return sum, fmt.Errorf("recalculating %d: %w", year, err)
		}
		if !j.opts.DryRun {
			if err := j.replace(ctx, userID, year, res); err != nil {
				return sum, fmt.Errorf("recalculating %d: %w", year, err)
			}
		}

		sum.UpdatedYears = append(sum.UpdatedYears, year)
		sum.RetaggedTransactions += len(res.retag)
		sum.Transactions += res.transactions
		sum.Records += len(res.records)
		sum.Drifted = append(sum.Drifted, res.drifted...)
		j.log.Info().
			Int("year", year).
			Int("transactions", res.transactions).
			Int("records", len(res.records)).
			Int("retagged", len(res.retag)).
			Int("drifted", len(res.drifted)).
			Bool("dry_run", j.opts.DryRun).
			Msg("year recalculated")
	}
	return sum, nil
}

func (j *Job) knownYears(ctx context.Context, userID string) ([]int, error) {
	txYears, err := j.store.TransactionYears(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing transaction years: %w", err)
	}
	rollupYears, err := j.store.RollupYears(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing rollup years: %w", err)
	}
	return append(txYears, rollupYears...), nil
}

// compute pages through the year's transactions and accumulates fresh
// records. It reads through the store before any unit of work is opened.
func (j *Job) compute(ctx context.Context, userID string, year int) (yearResult, error) {
	var res yearResult
	acc := stats.NewAccumulator()

	for offset := 0; ; offset += j.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		page, err := j.store.ListTransactions(ctx, userID, year, offset, j.opts.BatchSize)
		if err != nil {
			return res, err
		}
		for _, tx := range page {
			tags := j.deriveTags(tx)
			if !model.SameTags(tags, tx.Tags) {
				res.retag = append(res.retag, tagUpdate{id: tx.ID, tags: tags})
				tx.Tags = tags
			}
			acc.Add(tx)
			res.transactions++
		}
		if len(page) < j.opts.BatchSize {
			break
		}
	}

	res.records = acc.Records()

	stored, err := j.store.Rollups(ctx, store.RollupQuery{UserID: userID, Year: year})
	if err != nil {
		return res, err
	}
	res.drifted = drift(stored, acc)
	return res, nil
}

// drift returns the keys whose stored record is malformed or differs from the
// fresh one, plus fresh keys with no stored record, in key order.
func drift(stored []model.RollupRecord, fresh *stats.Accumulator) []model.RollupKey {
	var out []model.RollupKey
	seen := make(map[model.RollupKey]bool, len(stored))
	for _, rec := range stored {
		seen[rec.Key] = true
		want := fresh.Get(rec.Key)
		if want == nil {
			// Emptied records stay behind as zeros after deletes.
			want = &model.RollupRecord{Key: rec.Key}
		}
		if stats.Check(rec) != nil || !stats.Equivalent(rec, *want) {
			out = append(out, rec.Key)
		}
	}
	for _, rec := range fresh.Records() {
		if !seen[rec.Key] {
			out = append(out, rec.Key)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Less(out[k]) })
	return out
}

// deriveTags re-runs the account's tag rules. Transactions whose account is
// no longer configured keep their stored tags.
func (j *Job) deriveTags(tx model.Transaction) []string {
	cfg, ok := j.accounts.Get(tx.AccountID)
	if !ok {
		return tx.Tags
	}
	return j.engine.DeriveTags(cfg, tx.ManualTags, rules.RecordFor(tx))
}

func (j *Job) replace(ctx context.Context, userID string, year int, res yearResult) error {
	return store.WithTx(ctx, j.store, func(uow store.UnitOfWork) error {
		if _, err := uow.DeleteRollups(ctx, userID, year); err != nil {
			return err
		}
		for _, rec := range res.records {
			if err := uow.PutRollup(ctx, rec); err != nil {
				return err
			}
		}
		for _, u := range res.retag {
			if err := uow.UpdateTransactionTags(ctx, u.id, u.tags); err != nil {
				return err
			}
		}
		return nil
	})
}

func uniqueSorted(years []int) []int {
	seen := make(map[int]bool, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}
