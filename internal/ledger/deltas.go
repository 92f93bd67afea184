package ledger

import (
	"context"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/stats"
	"github.com/cleared-dev/tally/internal/store"
)

// deltas chains postings onto the stored rollups of one unit of work. Each
// key is read once, then every further posting on it builds on the pending
// record, so a reversal and a re-application of the same key net out before
// anything is written.
type deltas struct {
	uow     store.UnitOfWork
	pending map[model.RollupKey]*model.RollupRecord
	order   []model.RollupKey
}

func newDeltas(uow store.UnitOfWork) *deltas {
	return &deltas{uow: uow, pending: make(map[model.RollupKey]*model.RollupRecord)}
}

func (d *deltas) post(ctx context.Context, postings []stats.Posting) error {
	for _, p := range postings {
		rec, seen := d.pending[p.Key]
		if !seen {
			var err error
			rec, err = d.uow.Rollup(ctx, p.Key)
			if err != nil {
				return err
			}
			d.order = append(d.order, p.Key)
		}
		next := stats.Apply(rec, p.Key, p.Amount, p.Date)
		d.pending[p.Key] = &next
	}
	return nil
}

// flush writes every touched record, in first-touched order.
func (d *deltas) flush(ctx context.Context) error {
	for _, k := range d.order {
		if err := d.uow.PutRollup(ctx, *d.pending[k]); err != nil {
			return err
		}
	}
	return nil
}

func (d *deltas) len() int { return len(d.order) }
