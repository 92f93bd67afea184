package model

// FieldType is the decoded type of one column of an import line.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldAmount FieldType = "amount"
	FieldDate   FieldType = "date"
)

// Comparison names a rule predicate operator. The YAML key keeps the
// historical "comparision" spelling used by existing account files.
type Comparison string

const (
	CompareStartsWith  Comparison = "STARTS_WITH"
	CompareContains    Comparison = "CONTAINS"
	CompareEndsWith    Comparison = "ENDS_WITH"
	CompareEquals      Comparison = "EQUALS"
	CompareNotEquals   Comparison = "NOT_EQUALS"
	CompareGreaterThan Comparison = "GREATER_THAN"
	CompareLessThan    Comparison = "LESS_THAN"
)

// ScopeLine marks a text adjustment applied to the whole raw line.
const ScopeLine = "line"

// FileField describes one positional column of an account's import file.
type FileField struct {
	Name            string    `yaml:"name"`
	Type            FieldType `yaml:"type"`
	Format          string    `yaml:"format,omitempty"`
	ExpenseColumn   bool      `yaml:"expenseColumn,omitempty"`
	ExpenseType     string    `yaml:"expenseType,omitempty"`
	Ignore          bool      `yaml:"ignore,omitempty"`
	Negated         bool      `yaml:"negated,omitempty"`
	TimeColumnIndex *int      `yaml:"timeColumnIndex,omitempty"`
}

// RuleOp is a declarative predicate over a record field. Tag rules carry
// the tags they contribute; ignore rules leave Tags empty.
type RuleOp struct {
	Name       string     `yaml:"name"`
	Comparison Comparison `yaml:"comparision"`
	Value      string     `yaml:"value"`
	Tags       []string   `yaml:"tags,omitempty"`
}

// TextAdjust is a literal replacement. Scope is "line" or a field name.
type TextAdjust struct {
	Scope       string `yaml:"scope"`
	Source      string `yaml:"source"`
	ReplaceWith string `yaml:"replaceWith"`
}

// AccountConfig is the per-account import and rule configuration.
type AccountConfig struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	HeaderLines  int          `yaml:"headerLines"`
	Separator    string       `yaml:"separator"`
	TrimQuotes   bool         `yaml:"trimQuotes"`
	FileFields   []FileField  `yaml:"fileFields,omitempty"`
	IgnoreOps    []RuleOp     `yaml:"ignoreOps,omitempty"`
	TagOps       []RuleOp     `yaml:"tagOps,omitempty"`
	TextToAdjust []TextAdjust `yaml:"textToAdjust,omitempty"`
}
