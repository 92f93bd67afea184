package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

const descriptionField = "description"

// BuildDraft turns decoded fields into a transaction draft for cfg's account.
//
// Amount fields are summed. A non-zero expenseColumn field makes the draft an
// Expense; otherwise an expenseType field decides by its value; otherwise the
// sign of the sum does. The draft carries the absolute amount.
func BuildDraft(fields FieldMap, cfg model.AccountConfig) (model.Draft, error) {
	var (
		amount        = decimal.Zero
		haveAmount    bool
		expenseCol    bool
		expenseColHit bool
		typeFromField *model.TransactionType
		date          time.Time
		descParts     []string
	)

	for _, f := range cfg.FileFields {
		if f.Ignore {
			continue
		}
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		switch f.Type {
		case model.FieldAmount:
			d, _ := v.(decimal.Decimal)
			amount = amount.Add(d)
			haveAmount = true
			if f.ExpenseColumn {
				expenseCol = true
				if !d.IsZero() {
					expenseColHit = true
				}
			}
		case model.FieldDate:
			if t, ok := v.(time.Time); ok && date.IsZero() {
				date = t
			}
		case model.FieldString, "":
			s, _ := v.(string)
			if f.ExpenseType != "" {
				typ := model.TypeIncome
				if strings.EqualFold(s, f.ExpenseType) {
					typ = model.TypeExpense
				}
				typeFromField = &typ
				continue
			}
			if s != "" {
				descParts = append(descParts, s)
			}
		}
	}

	if !haveAmount {
		return model.Draft{}, fmt.Errorf("account %s: no amount field in layout", cfg.ID)
	}
	if date.IsZero() {
		return model.Draft{}, fmt.Errorf("account %s: no date field in layout", cfg.ID)
	}

	typ := model.TypeIncome
	switch {
	case expenseCol:
		if expenseColHit {
			typ = model.TypeExpense
		}
	case typeFromField != nil:
		typ = *typeFromField
	case amount.IsNegative():
		typ = model.TypeExpense
	}

	desc := strings.Join(descParts, " ")
	if _, ok := fields[descriptionField]; ok {
		desc = fields.String(descriptionField)
	}

	return model.Draft{
		Amount:      amount.Abs(),
		Type:        typ,
		Date:        date,
		AccountID:   cfg.ID,
		Description: desc,
		Fields:      fields.Strings(),
	}, nil
}
