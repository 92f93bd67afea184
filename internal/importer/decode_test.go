package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
)

func intPtr(i int) *int { return &i }

func basicConfig() model.AccountConfig {
	return model.AccountConfig{
		ID:         "checking",
		Separator:  ",",
		TrimQuotes: true,
		FileFields: []model.FileField{
			{Name: "date", Type: model.FieldDate, Format: "MM/DD/YYYY"},
			{Name: "description", Type: model.FieldString},
			{Name: "amount", Type: model.FieldAmount},
		},
	}
}

func TestDecode_TypedFields(t *testing.T) {
	fields, err := Decode(`01/03/2025, "GITHUB *PRO" ,-1,204.50`, withLineFix(basicConfig()))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), fields["date"])
	assert.Equal(t, "GITHUB *PRO", fields["description"])
	amt, ok := fields["amount"].(decimal.Decimal)
	require.True(t, ok)
	assert.Equal(t, "-1204.5", amt.String())
}

func withLineFix(cfg model.AccountConfig) model.AccountConfig {
	cfg.TextToAdjust = append(cfg.TextToAdjust, model.TextAdjust{Scope: model.ScopeLine, Source: "-1,204", ReplaceWith: "-1204"})
	return cfg
}

func TestDecode_RetryAfterLineAdjustment(t *testing.T) {
	cfg := basicConfig()
	cfg.TextToAdjust = []model.TextAdjust{{Scope: model.ScopeLine, Source: "ACME, INC", ReplaceWith: "ACME INC"}}

	fields, err := Decode("01/15/2025,ACME, INC,3500.00", cfg)
	require.NoError(t, err)
	assert.Equal(t, "ACME INC", fields["description"])
}

func TestDecode_FormatMismatch(t *testing.T) {
	_, err := Decode("01/15/2025,ACME, INC,3500.00", basicConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormatMismatch))

	var fm *FormatMismatchError
	require.True(t, errors.As(err, &fm))
	assert.Equal(t, "3", fm.Expected)
	assert.Equal(t, "4", fm.Got)
	assert.Empty(t, fm.Field)
}

func TestDecode_BadValueIsMismatch(t *testing.T) {
	_, err := Decode("NOTADATE,x,1.00", basicConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormatMismatch))
	assert.Contains(t, err.Error(), "field date")
}

func TestDecode_IgnoredFieldsAreParsedButDropped(t *testing.T) {
	cfg := basicConfig()
	cfg.FileFields = append(cfg.FileFields, model.FileField{Name: "balance", Type: model.FieldAmount, Ignore: true})

	fields, err := Decode("01/03/2025,x,1.00,99.00", cfg)
	require.NoError(t, err)
	assert.NotContains(t, fields, "balance")
	assert.Len(t, fields, 3)

	_, err = Decode("01/03/2025,x,1.00,abc", cfg)
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestDecode_AmountFormats(t *testing.T) {
	tests := []struct {
		raw     string
		format  string
		negated bool
		want    string
	}{
		{"1,234.56", "", false, "1234.56"},
		{"$ 12.00", "", false, "12"},
		{"(45.10)", "", false, "-45.1"},
		{"1.234,56", "comma", false, "1234.56"},
		{"€3,5", "comma", false, "3.5"},
		{"20.00", "", true, "-20"},
		{"", "", false, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cfg := model.AccountConfig{
				Separator:  ";",
				FileFields: []model.FileField{{Name: "amount", Type: model.FieldAmount, Format: tt.format, Negated: tt.negated}},
			}
			fields, err := Decode(tt.raw, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fields.String("amount"))
		})
	}
}

func TestDecode_DateLayouts(t *testing.T) {
	tests := []struct {
		raw    string
		format string
		want   time.Time
	}{
		{"2024-02-29", "", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"29.02.2024", "DD.MM.YYYY", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"3/7/24", "M/D/YY", time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)},
		{"2024-02-29 13:45", "YYYY-MM-DD HH:mm", time.Date(2024, 2, 29, 13, 45, 0, 0, time.UTC)},
		{"Feb 29 2024", "Jan 2 2006", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"05-Jun-2024", "DD-MMM-YYYY", time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cfg := model.AccountConfig{
				Separator:  ";",
				FileFields: []model.FileField{{Name: "date", Type: model.FieldDate, Format: tt.format}},
			}
			fields, err := Decode(tt.raw, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fields["date"])
		})
	}
}

func TestDateLayout(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"MM/DD/YYYY", "01/02/2006"},
		{"M/D/YY", "1/2/06"},
		{"DD-MMM-YYYY", "02-Jan-2006"},
		{"DD-Mon-YYYY", "02-Mon-2006"},
		{"Day DD, Month YYYY", "Day 02, Month 2006"},
		{"2006-01-02", "2006-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.want, dateLayout(tt.format))
		})
	}
}

func TestDecode_TimeColumn(t *testing.T) {
	cfg := model.AccountConfig{
		Separator: ";",
		FileFields: []model.FileField{
			{Name: "date", Type: model.FieldDate, Format: "DD/MM/YYYY", TimeColumnIndex: intPtr(1)},
			{Name: "time", Type: model.FieldString, Ignore: true},
		},
	}
	fields, err := Decode("05/06/2024;18:30:15", cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 5, 18, 30, 15, 0, time.UTC), fields["date"])
	assert.Equal(t, "2024-06-05 18:30:15", fields.String("date"))

	_, err = Decode("05/06/2024;later", cfg)
	assert.ErrorIs(t, err, ErrFormatMismatch)
}

func TestDecode_FieldScopedAdjustment(t *testing.T) {
	cfg := basicConfig()
	cfg.TextToAdjust = []model.TextAdjust{{Scope: "description", Source: "POS ", ReplaceWith: ""}}

	fields, err := Decode("01/03/2025,POS COFFEE,3.20", cfg)
	require.NoError(t, err)
	assert.Equal(t, "COFFEE", fields["description"])
}
