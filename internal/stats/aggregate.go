// Package stats computes rollup deltas. Everything here is pure: records go
// in, new records come out, and nothing touches a store.
package stats

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// Apply adds amount to the yearly total and to the month and day buckets
// for date. A nil rec starts a new record for key. Zero buckets are kept.
// Reversing a contribution is Apply with the negated amount and same date.
func Apply(rec *model.RollupRecord, key model.RollupKey, amount decimal.Decimal, date time.Time) model.RollupRecord {
	var out model.RollupRecord
	if rec == nil {
		out = model.RollupRecord{Key: key, YearlyTotal: decimal.Zero}
	} else {
		out = rec.Clone()
	}

	out.YearlyTotal = out.YearlyTotal.Add(amount)
	out.Monthly = addMonth(out.Monthly, int(date.Month()), amount)
	out.Daily = addDay(out.Daily, date.Day(), amount)
	return out
}

func addMonth(buckets []model.MonthBucket, month int, amount decimal.Decimal) []model.MonthBucket {
	i := sort.Search(len(buckets), func(i int) bool { return buckets[i].Month >= month })
	if i < len(buckets) && buckets[i].Month == month {
		buckets[i].Total = buckets[i].Total.Add(amount)
		return buckets
	}
	buckets = append(buckets, model.MonthBucket{})
	copy(buckets[i+1:], buckets[i:])
	buckets[i] = model.MonthBucket{Month: month, Total: amount}
	return buckets
}

func addDay(buckets []model.DayBucket, day int, amount decimal.Decimal) []model.DayBucket {
	i := sort.Search(len(buckets), func(i int) bool { return buckets[i].Day >= day })
	if i < len(buckets) && buckets[i].Day == day {
		buckets[i].Total = buckets[i].Total.Add(amount)
		return buckets
	}
	buckets = append(buckets, model.DayBucket{})
	copy(buckets[i+1:], buckets[i:])
	buckets[i] = model.DayBucket{Day: day, Total: amount}
	return buckets
}
