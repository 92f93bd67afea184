package rules

import (
	"strings"
	"time"

	"github.com/cleared-dev/tally/internal/model"
)

// Canonical record keys, always present alongside the decoded fields.
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldType        = "type"
	FieldDate        = "date"
	FieldAccount     = "accountId"
)

// RecordForDraft flattens a draft into a rule record. Decoded fields come
// first; canonical keys are only filled in where the import did not already
// provide a column of that name.
func RecordForDraft(d model.Draft) Record {
	rec := make(Record, len(d.Fields)+5)
	for k, v := range d.Fields {
		rec[k] = v
	}
	setDefault(rec, FieldDescription, d.Description)
	setDefault(rec, FieldAmount, d.Amount.String())
	setDefault(rec, FieldType, string(d.Type))
	if !d.Date.IsZero() {
		setDefault(rec, FieldDate, d.Date.Format(time.DateOnly))
	}
	setDefault(rec, FieldAccount, d.AccountID)
	return rec
}

// RecordFor flattens a stored transaction the same way as its draft was.
func RecordFor(tx model.Transaction) Record {
	return RecordForDraft(model.Draft{
		Amount:      tx.Amount,
		Type:        tx.Type,
		Date:        tx.Date,
		AccountID:   tx.AccountID,
		Description: tx.Description,
		Fields:      tx.Fields,
	})
}

func setDefault(rec Record, key, value string) {
	if _, ok := rec[key]; !ok {
		rec[key] = value
	}
}

// AdjustLine applies every line-scoped text adjustment to raw.
func AdjustLine(adjustments []model.TextAdjust, raw string) string {
	for _, adj := range adjustments {
		if adj.Scope != model.ScopeLine {
			continue
		}
		raw = strings.ReplaceAll(raw, adj.Source, adj.ReplaceWith)
	}
	return raw
}
