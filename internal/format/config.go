package format

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CanonicalField is one of the fixed target attributes every format maps into.
type CanonicalField string

const (
	FieldDateValue          CanonicalField = "dateValue"
	FieldDateCreation       CanonicalField = "dateCreation"
	FieldAmount             CanonicalField = "amount"
	FieldDescription        CanonicalField = "description"
	FieldRecipientApplicant CanonicalField = "recipientApplicant"
	FieldIBAN               CanonicalField = "iban"
	FieldBIC                CanonicalField = "bic"
	FieldAccount            CanonicalField = "account" // injected by the importer, never extracted
)

// ExtractedFields are the canonical fields a format may populate from a row.
var ExtractedFields = []CanonicalField{
	FieldDateValue,
	FieldDateCreation,
	FieldAmount,
	FieldDescription,
	FieldRecipientApplicant,
	FieldIBAN,
	FieldBIC,
}

// ParseField resolves a canonical field name case-insensitively.
func ParseField(s string) (CanonicalField, bool) {
	s = strings.TrimSpace(s)
	for _, f := range ExtractedFields {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	if strings.EqualFold(string(FieldAccount), s) {
		return FieldAccount, true
	}
	return "", false
}

// StrategyKind tags a ColumnStrategy variant.
type StrategyKind int

const (
	StrategyUnused StrategyKind = iota
	StrategyName
	StrategyJoin
	StrategyRegex
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyName:
		return "name"
	case StrategyJoin:
		return "join"
	case StrategyRegex:
		return "regex"
	default:
		return "unused"
	}
}

// RegexSource extracts a fragment from one source column.
type RegexSource struct {
	Column  string
	Pattern string

	re *regexp.Regexp
}

// ColumnStrategy describes how one canonical field is derived from raw columns.
// Only the fields belonging to Kind are meaningful.
type ColumnStrategy struct {
	Kind      StrategyKind
	Column    string        // StrategyName
	Columns   []string      // StrategyJoin
	Separator string        // StrategyJoin
	Sources   []RegexSource // StrategyRegex
}

// Name copies a single column.
func Name(column string) ColumnStrategy {
	return ColumnStrategy{Kind: StrategyName, Column: column}
}

// Join concatenates columns in order with separator between them.
func Join(separator string, columns ...string) ColumnStrategy {
	return ColumnStrategy{Kind: StrategyJoin, Columns: columns, Separator: separator}
}

// Regex concatenates the fragments matched by each source.
func Regex(sources ...RegexSource) ColumnStrategy {
	return ColumnStrategy{Kind: StrategyRegex, Sources: sources}
}

// referencedColumns returns every column name the strategy reads.
func (s ColumnStrategy) referencedColumns() []string {
	switch s.Kind {
	case StrategyName:
		return []string{s.Column}
	case StrategyJoin:
		return s.Columns
	case StrategyRegex:
		cols := make([]string, len(s.Sources))
		for i, src := range s.Sources {
			cols[i] = src.Column
		}
		return cols
	}
	return nil
}

// FormatConfig describes one version of a bank's CSV export.
type FormatConfig struct {
	Encoding         string
	Delimiter        rune
	DecimalSeparator rune
	DateFormat       string // strftime ("%d.%m.%Y") or Go layout ("02.01.2006")
	HeaderSkipLines  int
	Header           []string // explicit header; nil = first row after the skipped lines
	Columns          map[CanonicalField]ColumnStrategy

	compiled bool
}

// Strategy returns the strategy configured for field (StrategyUnused if none).
func (c *FormatConfig) Strategy(field CanonicalField) ColumnStrategy {
	return c.Columns[field]
}

// Compiled reports whether Compile succeeded on this config.
func (c *FormatConfig) Compiled() bool {
	return c.compiled
}

// Format is a named bank format with one or more versions.
type Format struct {
	Name           string
	DefaultVersion string
	Versions       map[string]*FormatConfig
}

// VersionNames returns the version keys sorted.
func (f *Format) VersionNames() []string {
	names := make([]string, 0, len(f.Versions))
	for v := range f.Versions {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

func (c *FormatConfig) String() string {
	return fmt.Sprintf("delimiter=%q decimal=%q date=%q skip=%d", c.Delimiter, c.DecimalSeparator, c.DateFormat, c.HeaderSkipLines)
}
