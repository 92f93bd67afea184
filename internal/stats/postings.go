package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// Posting is one contribution of a transaction to one rollup record.
type Posting struct {
	Key    model.RollupKey
	Amount decimal.Decimal
	Date   time.Time
}

// SignedAmount is the net-flow contribution used by the tag, account and
// user families: +amount for income, -amount for expenses.
func SignedAmount(tx model.Transaction) decimal.Decimal {
	if tx.Type == model.TypeExpense {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

// Postings returns every contribution tx makes. Type rollups take the raw
// amount under the transaction's own type; the other families take the
// signed amount.
func Postings(tx model.Transaction) []Posting {
	year := tx.Year()
	signed := SignedAmount(tx)
	key := func(d model.Dimension, value string) model.RollupKey {
		return model.RollupKey{Dimension: d, UserID: tx.UserID, Value: value, Year: year}
	}

	out := make([]Posting, 0, len(tx.Tags)+3)
	for _, tag := range tx.Tags {
		out = append(out, Posting{Key: key(model.DimensionTag, tag), Amount: signed, Date: tx.Date})
	}
	out = append(out,
		Posting{Key: key(model.DimensionType, string(tx.Type)), Amount: tx.Amount, Date: tx.Date},
		Posting{Key: key(model.DimensionAccount, tx.AccountID), Amount: signed, Date: tx.Date},
		Posting{Key: key(model.DimensionUser, ""), Amount: signed, Date: tx.Date},
	)
	return out
}

// Reversal returns the postings that undo tx's contribution.
func Reversal(tx model.Transaction) []Posting {
	out := Postings(tx)
	for i := range out {
		out[i].Amount = out[i].Amount.Neg()
	}
	return out
}
