package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Dimension is one axis transactions are rolled up along.
type Dimension string

const (
	DimensionTag     Dimension = "tag"
	DimensionType    Dimension = "type"
	DimensionAccount Dimension = "account"
	DimensionUser    Dimension = "user"
)

// Dimensions lists every rollup family in a stable order.
var Dimensions = []Dimension{DimensionTag, DimensionType, DimensionAccount, DimensionUser}

// ParseDimension accepts a dimension name as written on the command line.
func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// RollupKey identifies one rollup record. Value is empty for the user
// dimension.
type RollupKey struct {
	Dimension Dimension
	UserID    string
	Value     string
	Year      int
}

// Less orders keys by dimension, value, user, then year.
func (k RollupKey) Less(o RollupKey) bool {
	if k.Dimension != o.Dimension {
		return k.Dimension < o.Dimension
	}
	if k.Value != o.Value {
		return k.Value < o.Value
	}
	if k.UserID != o.UserID {
		return k.UserID < o.UserID
	}
	return k.Year < o.Year
}

// MonthBucket is the total for one calendar month.
type MonthBucket struct {
	Month int             `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// DayBucket is the total for one day of the month.
type DayBucket struct {
	Day   int             `json:"day"`
	Total decimal.Decimal `json:"total"`
}

// RollupRecord is a year of totals for one dimension value.
type RollupRecord struct {
	Key         RollupKey
	YearlyTotal decimal.Decimal
	Monthly     []MonthBucket
	Daily       []DayBucket
}

// Clone returns a deep copy so callers can derive new records without
// touching the original's bucket slices.
func (r RollupRecord) Clone() RollupRecord {
	out := RollupRecord{Key: r.Key, YearlyTotal: r.YearlyTotal}
	if r.Monthly != nil {
		out.Monthly = append([]MonthBucket(nil), r.Monthly...)
	}
	if r.Daily != nil {
		out.Daily = append([]DayBucket(nil), r.Daily...)
	}
	return out
}

// Month returns the month bucket total, zero when absent.
func (r RollupRecord) Month(m int) decimal.Decimal {
	for _, b := range r.Monthly {
		if b.Month == m {
			return b.Total
		}
	}
	return decimal.Zero
}

// Day returns the day bucket total, zero when absent.
func (r RollupRecord) Day(d int) decimal.Decimal {
	for _, b := range r.Daily {
		if b.Day == d {
			return b.Total
		}
	}
	return decimal.Zero
}
