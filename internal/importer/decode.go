package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
)

// ErrFormatMismatch is matched by every *FormatMismatchError.
var ErrFormatMismatch = errors.New("import format mismatch")

// FormatMismatchError reports an import line that does not fit its account's
// file layout. Field is empty when the column count was wrong.
type FormatMismatchError struct {
	Line     int
	Field    string
	Expected string
	Got      string
	Err      error
}

func (e *FormatMismatchError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Field == "" {
		fmt.Fprintf(&b, "expected %s fields, got %s", e.Expected, e.Got)
	} else {
		fmt.Fprintf(&b, "field %s: expected %s, got %q", e.Field, e.Expected, e.Got)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FormatMismatchError) Is(target error) bool { return target == ErrFormatMismatch }

func (e *FormatMismatchError) Unwrap() error { return e.Err }

// FieldMap holds decoded values keyed by field name. Values are string,
// decimal.Decimal or time.Time according to the field's type.
type FieldMap map[string]any

// String returns the string form of a decoded field.
func (m FieldMap) String(name string) string {
	return formatValue(m[name])
}

// Strings returns the string form of every field.
func (m FieldMap) Strings() map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = formatValue(v)
	}
	return out
}

const defaultSeparator = ","

// Decode splits line by the account's separator and converts each column
// according to its FileField. When the column count is wrong, line-scoped
// text adjustments are applied and the line is split once more.
func Decode(line string, cfg model.AccountConfig) (FieldMap, error) {
	sep := cfg.Separator
	if sep == "" {
		sep = defaultSeparator
	}

	cols := strings.Split(line, sep)
	if len(cols) != len(cfg.FileFields) {
		if adjusted := rules.AdjustLine(cfg.TextToAdjust, line); adjusted != line {
			cols = strings.Split(adjusted, sep)
		}
	}
	if len(cols) != len(cfg.FileFields) {
		return nil, &FormatMismatchError{
			Expected: fmt.Sprint(len(cfg.FileFields)),
			Got:      fmt.Sprint(len(cols)),
		}
	}

	for i := range cols {
		cols[i] = cleanColumn(cols[i], cfg.TrimQuotes)
	}

	out := make(FieldMap, len(cols))
	for i, f := range cfg.FileFields {
		v, err := decodeField(f, cols[i], cols)
		if err != nil {
			return nil, &FormatMismatchError{Field: f.Name, Expected: string(f.Type), Got: cols[i], Err: err}
		}
		if f.Ignore {
			continue
		}
		out[f.Name] = v
	}

	for _, adj := range cfg.TextToAdjust {
		if adj.Scope == model.ScopeLine {
			continue
		}
		if s, ok := out[adj.Scope].(string); ok {
			out[adj.Scope] = strings.ReplaceAll(s, adj.Source, adj.ReplaceWith)
		}
	}
	return out, nil
}

func cleanColumn(s string, trimQuotes bool) string {
	s = strings.TrimSpace(s)
	if trimQuotes && len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func decodeField(f model.FileField, raw string, cols []string) (any, error) {
	switch f.Type {
	case model.FieldString, "":
		return raw, nil
	case model.FieldNumber, model.FieldAmount:
		d, err := parseNumber(raw, f.Format)
		if err != nil {
			return nil, err
		}
		if f.Negated {
			d = d.Neg()
		}
		return d, nil
	case model.FieldDate:
		t, err := parseDate(raw, f.Format)
		if err != nil {
			return nil, err
		}
		if f.TimeColumnIndex != nil {
			idx := *f.TimeColumnIndex
			if idx < 0 || idx >= len(cols) {
				return nil, fmt.Errorf("time column %d out of range", idx)
			}
			t, err = withTimeOfDay(t, cols[idx])
			if err != nil {
				return nil, err
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown field type %q", f.Type)
}

// parseNumber accepts plain decimals plus thousands separators, currency
// symbols and accounting parentheses. Format "comma" reads 1.234,56.
func parseNumber(raw, format string) (decimal.Decimal, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '$', '€', '£', '¥':
			return -1
		}
		return r
	}, raw)
	if s == "" {
		return decimal.Zero, nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if format == "comma" {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing number: %w", err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

const defaultDateLayout = time.DateOnly

func parseDate(raw, format string) (time.Time, error) {
	layout := dateLayout(format)
	t, err := time.ParseInLocation(layout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date with layout %q: %w", layout, err)
	}
	return t, nil
}

var dateTokens = []struct{ token, layout string }{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"DD", "02"},
	{"D", "2"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

// dateLayout turns a token layout such as DD/MM/YYYY into a Go layout. Go
// layouts pass through unchanged. The single-letter tokens M and D are only
// replaced when they stand alone, so words like "Mon" are left as they are.
func dateLayout(format string) string {
	if format == "" {
		return defaultDateLayout
	}
	if !strings.Contains(format, "YY") && !strings.Contains(format, "DD") && !strings.Contains(format, "MM") {
		return format
	}

	var b strings.Builder
	for i := 0; i < len(format); {
		matched := false
		for _, tok := range dateTokens {
			if len(tok.token) == 1 && inWord(format, i) {
				continue
			}
			if strings.HasPrefix(format[i:], tok.token) {
				b.WriteString(tok.layout)
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}

// inWord reports whether the byte at i touches a letter on either side.
func inWord(s string, i int) bool {
	return (i > 0 && isLetter(s[i-1])) || (i+1 < len(s) && isLetter(s[i+1]))
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func withTimeOfDay(day time.Time, raw string) (time.Time, error) {
	if raw == "" {
		return day, nil
	}
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if tod, err := time.Parse(layout, raw); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing time of day %q", raw)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	}
	return fmt.Sprint(v)
}
