package accounts

import "github.com/cleared-dev/tally/internal/model"

// DefaultConfigs returns the starter account layouts written by init.
func DefaultConfigs() []model.AccountConfig {
	return []model.AccountConfig{chaseChecking(), cashManual()}
}

// chaseChecking reads Chase checking exports:
// Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
func chaseChecking() model.AccountConfig {
	return model.AccountConfig{
		ID:          "chase-checking",
		Name:        "Chase Checking",
		HeaderLines: 1,
		Separator:   ",",
		TrimQuotes:  true,
		FileFields: []model.FileField{
			{Name: "details", Type: model.FieldString},
			{Name: "date", Type: model.FieldDate, Format: "MM/DD/YYYY"},
			{Name: "description", Type: model.FieldString},
			{Name: "amount", Type: model.FieldAmount},
			{Name: "kind", Type: model.FieldString},
			{Name: "balance", Type: model.FieldAmount, Ignore: true},
			{Name: "check", Type: model.FieldString, Ignore: true},
		},
		IgnoreOps: []model.RuleOp{
			{Name: "kind", Comparison: model.CompareEquals, Value: "ACCT_XFER"},
		},
		TagOps: []model.RuleOp{
			{Name: "description", Comparison: model.CompareStartsWith, Value: "GITHUB", Tags: []string{"software"}},
			{Name: "description", Comparison: model.CompareContains, Value: "INVOICE", Tags: []string{"revenue"}},
		},
	}
}

// cashManual has no file layout and is used for hand-entered transactions.
func cashManual() model.AccountConfig {
	return model.AccountConfig{ID: "cash", Name: "Cash"}
}
