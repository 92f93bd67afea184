package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

// Header is the CSV header of a ledger export.
const Header = "id,date,type,amount,account_id,description,tags,manual_tags"

const dateFormat = "2006-01-02"

// MarshalTransaction converts a transaction to a CSV row.
func MarshalTransaction(tx model.Transaction) []string {
	return []string{
		tx.ID,
		tx.Date.Format(dateFormat),
		string(tx.Type),
		tx.Amount.StringFixed(2),
		tx.AccountID,
		tx.Description,
		strings.Join(tx.Tags, ";"),
		strings.Join(tx.ManualTags, ";"),
	}
}

// WriteTransactions writes transactions as CSV, including the header.
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, tx := range txs {
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes a user's transactions for year as CSV.
func (s *Service) Export(ctx context.Context, w io.Writer, userID string, year int) error {
	txs, err := s.List(ctx, userID, year)
	if err != nil {
		return err
	}
	return WriteTransactions(w, txs)
}
