package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

const rollupColumns = `dimension, user_id, value, year, yearly_total, monthly, daily`

func scanRollup(s scanner) (model.RollupRecord, error) {
	var (
		r                      model.RollupRecord
		dim, total, mon, daily string
	)
	if err := s.Scan(&dim, &r.Key.UserID, &r.Key.Value, &r.Key.Year, &total, &mon, &daily); err != nil {
		return model.RollupRecord{}, err
	}
	r.Key.Dimension = model.Dimension(dim)

	var err error
	if r.YearlyTotal, err = decimal.NewFromString(total); err != nil {
		return model.RollupRecord{}, fmt.Errorf("rollup %s/%s: total %q: %w", dim, r.Key.Value, total, err)
	}
	if err := json.Unmarshal([]byte(mon), &r.Monthly); err != nil {
		return model.RollupRecord{}, fmt.Errorf("rollup %s/%s: monthly: %w", dim, r.Key.Value, err)
	}
	if err := json.Unmarshal([]byte(daily), &r.Daily); err != nil {
		return model.RollupRecord{}, fmt.Errorf("rollup %s/%s: daily: %w", dim, r.Key.Value, err)
	}
	return r, nil
}

// Rollup returns the record for key, or nil when none exists.
func (s queries) Rollup(ctx context.Context, key model.RollupKey) (*model.RollupRecord, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+rollupColumns+` FROM rollups
	WHERE dimension = ? AND user_id = ? AND value = ? AND year = ?`,
		string(key.Dimension), key.UserID, key.Value, key.Year)
	r, err := scanRollup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading rollup: %w", err)
	}
	return &r, nil
}

// PutRollup inserts or replaces a rollup record.
func (s queries) PutRollup(ctx context.Context, r model.RollupRecord) error {
	mon, err := json.Marshal(nonNilMonths(r.Monthly))
	if err != nil {
		return fmt.Errorf("encoding monthly: %w", err)
	}
	daily, err := json.Marshal(nonNilDays(r.Daily))
	if err != nil {
		return fmt.Errorf("encoding daily: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
	INSERT INTO rollups(dimension, user_id, value, year, yearly_total, monthly, daily)
	VALUES(?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(dimension, user_id, value, year) DO UPDATE SET
	 yearly_total = excluded.yearly_total, monthly = excluded.monthly, daily = excluded.daily,
	 updated_at = CURRENT_TIMESTAMP`,
		string(r.Key.Dimension), r.Key.UserID, r.Key.Value, r.Key.Year, r.YearlyTotal.String(), string(mon), string(daily))
	if err != nil {
		return fmt.Errorf("writing rollup %s/%s/%d: %w", r.Key.Dimension, r.Key.Value, r.Key.Year, err)
	}
	return nil
}

func nonNilMonths(b []model.MonthBucket) []model.MonthBucket {
	if b == nil {
		return []model.MonthBucket{}
	}
	return b
}

func nonNilDays(b []model.DayBucket) []model.DayBucket {
	if b == nil {
		return []model.DayBucket{}
	}
	return b
}

// DeleteRollups removes every rollup record of a user's year across all
// dimensions.
func (s queries) DeleteRollups(ctx context.Context, userID string, year int) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM rollups WHERE user_id = ? AND year = ?`, userID, year)
	if err != nil {
		return 0, fmt.Errorf("deleting rollups for %d: %w", year, err)
	}
	return res.RowsAffected()
}

// Rollups returns the records matching q ordered by dimension, value, user
// and year.
func (s queries) Rollups(ctx context.Context, q RollupQuery) ([]model.RollupRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, q.Year)
	}
	if q.Dimension != "" {
		where = append(where, "dimension = ?")
		args = append(args, string(q.Dimension))
	}
	if q.Value != "" {
		where = append(where, "value = ?")
		args = append(args, q.Value)
	}

	query := "SELECT " + rollupColumns + " FROM rollups"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY dimension, value, user_id, year"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rollups: %w", err)
	}
	defer rows.Close()

	var out []model.RollupRecord
	for rows.Next() {
		r, err := scanRollup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing rollups: %w", err)
	}
	return out, nil
}

// RollupYears returns the years a user has rollup records in, ascending.
func (s queries) RollupYears(ctx context.Context, userID string) ([]int, error) {
	return s.years(ctx, `SELECT DISTINCT year FROM rollups WHERE user_id = ? ORDER BY year`, userID)
}
