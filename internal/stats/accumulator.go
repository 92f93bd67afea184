package stats

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// Accumulator builds rollup records from zero in memory.
type Accumulator struct {
	records map[model.RollupKey]*model.RollupRecord
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{records: make(map[model.RollupKey]*model.RollupRecord)}
}

// Add folds every posting of tx into the accumulated records.
func (a *Accumulator) Add(tx model.Transaction) {
	a.Post(Postings(tx)...)
}

// Post applies postings in order. Several postings on the same key chain.
func (a *Accumulator) Post(postings ...Posting) {
	for _, p := range postings {
		next := Apply(a.records[p.Key], p.Key, p.Amount, p.Date)
		a.records[p.Key] = &next
	}
}

// Get returns the accumulated record for key, or nil.
func (a *Accumulator) Get(key model.RollupKey) *model.RollupRecord {
	return a.records[key]
}

// Len returns the number of distinct records.
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Records returns the accumulated records sorted by key.
func (a *Accumulator) Records() []model.RollupRecord {
	out := make([]model.RollupRecord, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Check verifies yearly == Σ monthly == Σ daily and that bucket keys are in
// range and unique.
func Check(rec model.RollupRecord) error {
	monthSum := decimal.Zero
	seenMonth := make(map[int]bool, len(rec.Monthly))
	for _, b := range rec.Monthly {
		if b.Month < 1 || b.Month > 12 {
			return fmt.Errorf("rollup %v: month %d out of range", rec.Key, b.Month)
		}
		if seenMonth[b.Month] {
			return fmt.Errorf("rollup %v: duplicate month %d", rec.Key, b.Month)
		}
		seenMonth[b.Month] = true
		monthSum = monthSum.Add(b.Total)
	}

	daySum := decimal.Zero
	seenDay := make(map[int]bool, len(rec.Daily))
	for _, b := range rec.Daily {
		if b.Day < 1 || b.Day > 31 {
			return fmt.Errorf("rollup %v: day %d out of range", rec.Key, b.Day)
		}
		if seenDay[b.Day] {
			return fmt.Errorf("rollup %v: duplicate day %d", rec.Key, b.Day)
		}
		seenDay[b.Day] = true
		daySum = daySum.Add(b.Total)
	}

	if !rec.YearlyTotal.Equal(monthSum) {
		return fmt.Errorf("rollup %v: yearly %s != monthly sum %s", rec.Key, rec.YearlyTotal, monthSum)
	}
	if !rec.YearlyTotal.Equal(daySum) {
		return fmt.Errorf("rollup %v: yearly %s != daily sum %s", rec.Key, rec.YearlyTotal, daySum)
	}
	return nil
}

// Equivalent reports whether two records hold the same totals, treating a
// missing bucket and a zero bucket as equal.
func Equivalent(a, b model.RollupRecord) bool {
	if !a.YearlyTotal.Equal(b.YearlyTotal) {
		return false
	}
	for m := 1; m <= 12; m++ {
		if !a.Month(m).Equal(b.Month(m)) {
			return false
		}
	}
	for d := 1; d <= 31; d++ {
		if !a.Day(d).Equal(b.Day(d)) {
			return false
		}
	}
	return true
}
