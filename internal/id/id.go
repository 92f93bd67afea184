// Package id generates transaction ids and formats rollup keys for display.
package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cleared-dev/tally/internal/model"
)

// New returns a fresh transaction id.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is a well-formed transaction id.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// FormatRollupKey returns a key like "tag:food@2025". The user dimension has
// no value: "user@2025".
func FormatRollupKey(k model.RollupKey) string {
	if k.Value == "" {
		return fmt.Sprintf("%s@%04d", k.Dimension, k.Year)
	}
	return fmt.Sprintf("%s:%s@%04d", k.Dimension, k.Value, k.Year)
}

// ParseRollupKey parses a key written by FormatRollupKey for userID.
func ParseRollupKey(s, userID string) (model.RollupKey, error) {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return model.RollupKey{}, fmt.Errorf("invalid rollup key %q: missing year", s)
	}
	year, err := strconv.Atoi(s[at+1:])
	if err != nil {
		return model.RollupKey{}, fmt.Errorf("invalid year in rollup key %q: %w", s, err)
	}

	head := s[:at]
	var value string
	if i := strings.Index(head, ":"); i >= 0 {
		head, value = head[:i], head[i+1:]
	}
	dim, err := model.ParseDimension(head)
	if err != nil {
		return model.RollupKey{}, fmt.Errorf("invalid rollup key %q: %w", s, err)
	}
	return model.RollupKey{Dimension: dim, UserID: userID, Value: value, Year: year}, nil
}
