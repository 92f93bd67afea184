// Package ledger adds, edits and deletes transactions and keeps every
// affected rollup record in step within the same unit of work.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
	"github.com/cleared-dev/tally/internal/stats"
	"github.com/cleared-dev/tally/internal/store"
)

// Stage is a step of a ledger operation.
type Stage string

const (
	StageValidating      Stage = "validating"
	StageDerivingTags    Stage = "deriving tags"
	StageComputingDeltas Stage = "computing deltas"
	StageCommitting      Stage = "committing"
	StageCommitted       Stage = "committed"
	StageAborted         Stage = "aborted"
)

// Accounts looks up account configs for tag derivation.
type Accounts interface {
	Get(id string) (model.AccountConfig, bool)
}

// Service provides business logic for ledger transactions.
type Service struct {
	store    store.Store
	accounts Accounts
	engine   rules.Engine
	log      zerolog.Logger
}

// NewService creates a ledger Service.
func NewService(s store.Store, accounts Accounts, engine rules.Engine, log zerolog.Logger) *Service {
	return &Service{store: s, accounts: accounts, engine: engine, log: log}
}

// Add stores one transaction and returns its id.
func (s *Service) Add(ctx context.Context, draft model.Draft, userID string) (string, error) {
	ids, err := s.AddBatch(ctx, []model.Draft{draft}, userID)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddBatch stores every draft in one unit of work. Either all of them are
// added, with their rollup deltas, or none are.
func (s *Service) AddBatch(ctx context.Context, drafts []model.Draft, userID string) ([]string, error) {
	op := s.begin("add", userID)

	for i, d := range drafts {
		if err := ValidateDraft(d, userID); err != nil {
			return nil, op.abort(batchErr(len(drafts), i, err))
		}
		if _, ok := s.accounts.Get(d.AccountID); !ok {
			return nil, op.abort(batchErr(len(drafts), i, fmt.Errorf("account %s: %w", d.AccountID, ErrNotFound)))
		}
	}

	op.enter(StageDerivingTags)
	txs := make([]model.Transaction, len(drafts))
	for i, d := range drafts {
		txs[i] = s.transaction(id.New(), userID, d)
	}

	op.enter(StageComputingDeltas)
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, op.abort(&PersistenceError{Stage: StageComputingDeltas, Err: err})
	}
	defer uow.Rollback()

	deltas := newDeltas(uow)
	for _, tx := range txs {
		if err := deltas.post(ctx, stats.Postings(tx)); err != nil {
			return nil, op.abort(&PersistenceError{Stage: StageComputingDeltas, Err: err})
		}
	}

	op.enter(StageCommitting)
	for _, tx := range txs {
		if err := uow.InsertTransaction(ctx, tx); err != nil {
			return nil, op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
		}
	}
	if err := deltas.flush(ctx); err != nil {
		return nil, op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
	}
	if err := uow.Commit(); err != nil {
		return nil, op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
	}

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	op.commit(len(txs), deltas.len())
	return ids, nil
}

// Update replaces the stored transaction old.ID with draft. The stored row,
// not old, is what gets reversed.
func (s *Service) Update(ctx context.Context, old model.Transaction, draft model.Draft, userID string) error {
	op := s.begin("update", userID)
	op.log = op.log.With().Str("transaction", old.ID).Logger()

	if err := ValidateDraft(draft, userID); err != nil {
		return op.abort(err)
	}
	if _, ok := s.accounts.Get(draft.AccountID); !ok {
		return op.abort(fmt.Errorf("account %s: %w", draft.AccountID, ErrNotFound))
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return op.abort(&PersistenceError{Stage: StageValidating, Err: err})
	}
	defer uow.Rollback()

	stored, err := s.owned(ctx, uow, old.ID, userID)
	if err != nil {
		return op.abort(err)
	}

	op.enter(StageDerivingTags)
	draft.Fields = refreshFields(stored, draft)
	next := s.transaction(stored.ID, userID, draft)

	op.enter(StageComputingDeltas)
	deltas := newDeltas(uow)
	if err := deltas.post(ctx, stats.Reversal(stored)); err != nil {
		return op.abort(&PersistenceError{Stage: StageComputingDeltas, Err: err})
	}
	if err := deltas.post(ctx, stats.Postings(next)); err != nil {
		return op.abort(&PersistenceError{Stage: StageComputingDeltas, Err: err})
	}

	op.enter(StageCommitting)
	if err := uow.UpdateTransaction(ctx, next); err != nil {
		return op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
	}
	if err := deltas.flush(ctx); err != nil {
		return op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
	}
	if err := uow.Commit(); err != nil {
		return op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
	}
	op.commit(1, deltas.len())
	return nil
}

// Delete removes a transaction and reverses its rollup contributions.
func (s *Service) Delete(ctx context.Context, txID, userID string) error {
	op := s.begin("delete", userID)
	op.log = op.log.With().Str("transaction", txID).Logger()

	if userID == "" {
		return op.abort(ValidationError{Field: "user", Description: "user id is required"})
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return op.abort(&PersistenceError{Stage: StageValidating, Err: err})
	}
	defer uow.Rollback()

	stored, err := s.owned(ctx, uow, txID, userID)
	if err != nil {
		return op.abort(err)
	}

	op.enter(StageComputingDeltas)
	deltas := newDeltas(uow)
	if err := deltas.post(ctx, stats.Reversal(stored)); err != nil {
		return op.abort(&PersistenceError{Stage: StageComputingDeltas, Err: err})
	}

	op.enter(StageCommitting)
	if err := uow.DeleteTransaction(ctx, txID); err != nil {
		return op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
	}
	if err := deltas.flush(ctx); err != nil {
		return op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
	}
	if err := uow.Commit(); err != nil {
		return op.abort(&PersistenceError{Stage: StageCommitting, Err: err})
	}
	op.commit(1, deltas.len())
	return nil
}

// Get returns a transaction owned by userID.
func (s *Service) Get(ctx context.Context, txID, userID string) (model.Transaction, error) {
	return s.owned(ctx, s.store, txID, userID)
}

// List returns a user's transactions in year, ordered by date.
func (s *Service) List(ctx context.Context, userID string, year int) ([]model.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, userID, year, 0, 0)
	if err != nil {
		return nil, &PersistenceError{Stage: StageValidating, Err: err}
	}
	return txs, nil
}

func (s *Service) owned(ctx context.Context, r store.Reader, txID, userID string) (model.Transaction, error) {
	tx, err := r.GetTransaction(ctx, txID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Transaction{}, err
	}
	if err != nil {
		return model.Transaction{}, &PersistenceError{Stage: StageValidating, Err: err}
	}
	if tx.UserID != userID {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txID, ErrUnauthorized)
	}
	return tx, nil
}

// transaction builds the stored form of a draft. Manual tags are kept apart
// from the effective tags so recalculation can re-derive the rule tags.
func (s *Service) transaction(txID, userID string, d model.Draft) model.Transaction {
	manual := model.NormalizeTags(d.Tags)
	tags := manual
	if cfg, ok := s.accounts.Get(d.AccountID); ok {
		tags = s.engine.DeriveTags(cfg, manual, rules.RecordForDraft(d))
	}
	return model.Transaction{
		ID:          txID,
		UserID:      userID,
		Amount:      d.Amount,
		Date:        d.Date.UTC(),
		Type:        d.Type,
		Tags:        tags,
		ManualTags:  manual,
		AccountID:   d.AccountID,
		Description: d.Description,
		Fields:      d.Fields,
	}
}

// refreshFields drops decoded import fields that the edit overrides, so rule
// records see the edited description, amount and date rather than the values
// of the original import line. Other decoded columns are kept.
func refreshFields(stored model.Transaction, d model.Draft) map[string]string {
	if len(d.Fields) == 0 {
		return d.Fields
	}
	stale := make(map[string]bool, 3)
	if d.Description != stored.Description {
		stale[rules.FieldDescription] = true
	}
	if !d.Amount.Equal(stored.Amount) || d.Type != stored.Type {
		stale[rules.FieldAmount] = true
	}
	if !d.Date.Equal(stored.Date) {
		stale[rules.FieldDate] = true
	}
	if len(stale) == 0 {
		return d.Fields
	}

	out := make(map[string]string, len(d.Fields))
	for k, v := range d.Fields {
		if !stale[k] {
			out[k] = v
		}
	}
	return out
}

func batchErr(n, i int, err error) error {
	if n == 1 {
		return err
	}
	return fmt.Errorf("draft %d: %w", i+1, err)
}

// operation logs the stage transitions of one ledger call.
type operation struct {
	name  string
	stage Stage
	log   zerolog.Logger
}

func (s *Service) begin(name, userID string) *operation {
	op := &operation{name: name, log: s.log.With().Str("op", name).Str("user", userID).Logger()}
	op.enter(StageValidating)
	return op
}

func (o *operation) enter(st Stage) {
	o.stage = st
	o.log.Debug().Str("stage", string(st)).Msg("ledger stage")
}

func (o *operation) abort(err error) error {
	o.log.Debug().Err(err).Str("failed_in", string(o.stage)).Str("stage", string(StageAborted)).Msg("ledger stage")
	o.stage = StageAborted
	return fmt.Errorf("%s: %w", o.name, err)
}

func (o *operation) commit(txs, rollups int) {
	o.stage = StageCommitted
	o.log.Debug().Str("stage", string(StageCommitted)).Int("transactions", txs).Int("rollups", rollups).Msg("ledger stage")
}
