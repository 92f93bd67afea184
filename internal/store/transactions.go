package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

const dateLayout = time.RFC3339

const txColumns = `id, user_id, account_id, amount, date, type, description, tags, manual_tags, fields`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (model.Transaction, error) {
	var (
		t                          model.Transaction
		amount, date, typ          string
		tags, manualTags, fieldsJS string
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.AccountID, &amount, &date, &typ, &t.Description, &tags, &manualTags, &fieldsJS); err != nil {
		return model.Transaction{}, err
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: amount %q: %w", t.ID, amount, err)
	}
	if t.Date, err = time.Parse(dateLayout, date); err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: date %q: %w", t.ID, date, err)
	}
	t.Date = t.Date.UTC()
	t.Type = model.TransactionType(typ)
	t.Tags = splitTags(tags)
	t.ManualTags = splitTags(manualTags)
	if fieldsJS != "" && fieldsJS != "{}" {
		if err := json.Unmarshal([]byte(fieldsJS), &t.Fields); err != nil {
			return model.Transaction{}, fmt.Errorf("transaction %s: fields: %w", t.ID, err)
		}
	}
	return t, nil
}

// Tags are stored semicolon-separated.
func joinTags(tags []string) string { return strings.Join(tags, ";") }

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ";") {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func encodeFields(fields map[string]string) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}
	return string(b), nil
}

// GetTransaction returns the transaction with id or an ErrNotFound error.
func (s queries) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("loading transaction %s: %w", id, err)
	}
	return t, nil
}

// InsertTransaction stores a new transaction.
func (s queries) InsertTransaction(ctx context.Context, t model.Transaction) error {
	fields, err := encodeFields(t.Fields)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
	INSERT INTO transactions(id, user_id, account_id, amount, date, year, type, description, tags, manual_tags, fields)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, t.Amount.String(), t.Date.UTC().Format(dateLayout), t.Year(),
		string(t.Type), t.Description, joinTags(t.Tags), joinTags(t.ManualTags), fields)
	if err != nil {
		return fmt.Errorf("inserting transaction %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTransaction replaces every mutable column of an existing transaction.
func (s queries) UpdateTransaction(ctx context.Context, t model.Transaction) error {
	fields, err := encodeFields(t.Fields)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
	UPDATE transactions SET account_id = ?, amount = ?, date = ?, year = ?, type = ?, description = ?,
	 tags = ?, manual_tags = ?, fields = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`,
		t.AccountID, t.Amount.String(), t.Date.UTC().Format(dateLayout), t.Year(), string(t.Type),
		t.Description, joinTags(t.Tags), joinTags(t.ManualTags), fields, t.ID)
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", t.ID, err)
	}
	return expectOne(res, t.ID)
}

// UpdateTransactionTags replaces the effective tags of a transaction.
func (s queries) UpdateTransactionTags(ctx context.Context, id string, tags []string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE transactions SET tags = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, joinTags(tags), id)
	if err != nil {
		return fmt.Errorf("updating tags of %s: %w", id, err)
	}
	return expectOne(res, id)
}

// DeleteTransaction removes a transaction.
func (s queries) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTransactions returns one page of a user's transactions in year,
// ordered by date then id. A limit of zero returns the rest.
func (s queries) ListTransactions(ctx context.Context, userID string, year, offset, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.q.QueryContext(ctx, `SELECT `+txColumns+` FROM transactions
	WHERE user_id = ? AND year = ? ORDER BY date, id LIMIT ? OFFSET ?`, userID, year, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return out, nil
}

// TransactionYears returns the years a user has transactions in, ascending.
func (s queries) TransactionYears(ctx context.Context, userID string) ([]int, error) {
	return s.years(ctx, `SELECT DISTINCT year FROM transactions WHERE user_id = ? ORDER BY year`, userID)
}

func (s queries) years(ctx context.Context, query, userID string) ([]int, error) {
	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing years: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}
