package model

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType says whether money came in or went out.
type TransactionType string

const (
	TypeIncome  TransactionType = "Income"
	TypeExpense TransactionType = "Expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// ParseTransactionType accepts "income"/"expense" in any case.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return TypeIncome, true
	case "expense":
		return TypeExpense, true
	}
	return "", false
}

// Transaction is one ledger row owned by a user.
type Transaction struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal // positive magnitude; sign comes from Type
	Date        time.Time
	Type        TransactionType
	Tags        []string // effective tags: ManualTags plus rule-derived tags
	ManualTags  []string
	AccountID   string
	Description string
	Fields      map[string]string // decoded import fields, empty for manual entries
}

// Draft is the input to add/update before ids and derived tags exist.
type Draft struct {
	Amount      decimal.Decimal
	Type        TransactionType
	Date        time.Time
	Tags        []string
	AccountID   string
	Description string
	Fields      map[string]string
}

// Year returns the rollup year the transaction contributes to.
func (t Transaction) Year() int {
	return t.Date.Year()
}

// NormalizeTags trims, drops empties and duplicates, and sorts.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// UnionTags merges tag sets into one normalized set.
func UnionTags(sets ...[]string) []string {
	var all []string
	for _, s := range sets {
		all = append(all, s...)
	}
	return NormalizeTags(all)
}

// SameTags reports whether two normalized tag sets are equal.
func SameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
