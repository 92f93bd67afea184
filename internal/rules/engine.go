// Package rules evaluates per-account ignore, tag and text-adjustment rules
// against a flat string record.
package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// Record is the flat view of a transaction that rule predicates read.
type Record map[string]string

// Engine evaluates rules. The zero value matches case-sensitively.
type Engine struct {
	CaseInsensitive bool
}

// Matches reports whether record[rule.Name] satisfies the rule's comparison.
// A missing field never matches.
func (e Engine) Matches(rule model.RuleOp, record Record) bool {
	got, ok := record[rule.Name]
	if !ok {
		return false
	}
	want := rule.Value

	switch rule.Comparison {
	case model.CompareGreaterThan, model.CompareLessThan:
		return compareNumbers(rule.Comparison, got, want)
	}

	if e.CaseInsensitive {
		got = strings.ToLower(got)
		want = strings.ToLower(want)
	}
	switch rule.Comparison {
	case model.CompareStartsWith:
		return strings.HasPrefix(got, want)
	case model.CompareContains:
		return strings.Contains(got, want)
	case model.CompareEndsWith:
		return strings.HasSuffix(got, want)
	case model.CompareEquals:
		return got == want
	case model.CompareNotEquals:
		return got != want
	}
	return false
}

func compareNumbers(cmp model.Comparison, got, want string) bool {
	g, err := decimal.NewFromString(strings.TrimSpace(got))
	if err != nil {
		return false
	}
	w, err := decimal.NewFromString(strings.TrimSpace(want))
	if err != nil {
		return false
	}
	if cmp == model.CompareGreaterThan {
		return g.GreaterThan(w)
	}
	return g.LessThan(w)
}

// ApplyIgnoreRules reports whether any rule matches, meaning the record
// should be discarded.
func (e Engine) ApplyIgnoreRules(ops []model.RuleOp, record Record) bool {
	for _, op := range ops {
		if e.Matches(op, record) {
			return true
		}
	}
	return false
}

// ApplyTagRules returns the sorted union of tags from every matching rule.
func (e Engine) ApplyTagRules(ops []model.RuleOp, record Record) []string {
	var tags []string
	for _, op := range ops {
		if e.Matches(op, record) {
			tags = append(tags, op.Tags...)
		}
	}
	return model.NormalizeTags(tags)
}

// DeriveTags returns the manual tags plus every tag cfg's tag rules add for
// record. Rules only ever add.
func (e Engine) DeriveTags(cfg model.AccountConfig, manual []string, record Record) []string {
	return model.UnionTags(manual, e.ApplyTagRules(cfg.TagOps, record))
}

// Validate checks that every rule in cfg names a field and uses a known
// comparison.
func Validate(cfg model.AccountConfig) error {
	check := func(kind string, i int, op model.RuleOp) error {
		if strings.TrimSpace(op.Name) == "" {
			return fmt.Errorf("account %s: %s[%d]: name is required", cfg.ID, kind, i)
		}
		if !knownComparison(op.Comparison) {
			return fmt.Errorf("account %s: %s[%d]: unknown comparision %q", cfg.ID, kind, i, op.Comparison)
		}
		return nil
	}
	for i, op := range cfg.IgnoreOps {
		if err := check("ignoreOps", i, op); err != nil {
			return err
		}
	}
	for i, op := range cfg.TagOps {
		if err := check("tagOps", i, op); err != nil {
			return err
		}
		if len(op.Tags) == 0 {
			return fmt.Errorf("account %s: tagOps[%d]: no tags", cfg.ID, i)
		}
		for _, tag := range op.Tags {
			if strings.Contains(tag, ";") {
				return fmt.Errorf("account %s: tagOps[%d]: tag %q contains ';'", cfg.ID, i, tag)
			}
		}
	}
	for i, adj := range cfg.TextToAdjust {
		if adj.Scope == "" || adj.Source == "" {
			return fmt.Errorf("account %s: textToAdjust[%d]: scope and source are required", cfg.ID, i)
		}
	}
	return nil
}

func knownComparison(c model.Comparison) bool {
	switch c {
	case model.CompareStartsWith, model.CompareContains, model.CompareEndsWith, model.CompareEquals,
		model.CompareNotEquals, model.CompareGreaterThan, model.CompareLessThan:
		return true
	}
	return false
}
