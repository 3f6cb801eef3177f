package format

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/cleared-dev/tally/internal/pattern"
)

// MandatoryFields must be mapped by every format and non-empty on every row.
var MandatoryFields = []CanonicalField{FieldDateValue, FieldAmount, FieldDescription}

// Compile validates the config and compiles its regex sources in place.
// When an explicit header is configured, column references are checked
// against it here; otherwise CheckHeader must be called once per file.
func (c *FormatConfig) Compile() error {
	if err := c.validateScalars(); err != nil {
		return err
	}

	for field, strategy := range c.Columns {
		if field == FieldAccount {
			return &Error{Kind: ErrInvalid, Field: field, Detail: "account is injected by the importer and cannot be mapped"}
		}
		if _, ok := ParseField(string(field)); !ok {
			return &Error{Kind: ErrInvalid, Field: field, Detail: "unknown canonical field", Suggestion: suggest(string(field), fieldNames())}
		}
		compiled, err := compileStrategy(field, strategy)
		if err != nil {
			return err
		}
		c.Columns[field] = compiled
	}

	for _, field := range MandatoryFields {
		if c.Columns[field].Kind == StrategyUnused {
			return &Error{Kind: ErrInvalid, Field: field, Detail: "mandatory field is not mapped"}
		}
	}

	if c.Header != nil {
		if err := c.CheckHeader(NewHeader(c.Header)); err != nil {
			return err
		}
	}
	c.compiled = true
	return nil
}

func (c *FormatConfig) validateScalars() error {
	switch c.Delimiter {
	case 0, '\r', '\n', '"':
		return &Error{Kind: ErrInvalid, Detail: fmt.Sprintf("invalid delimiter %q", c.Delimiter)}
	}
	if c.DecimalSeparator != ',' && c.DecimalSeparator != '.' {
		return &Error{Kind: ErrInvalid, Detail: fmt.Sprintf("decimal separator must be ',' or '.', got %q", c.DecimalSeparator)}
	}
	if c.DecimalSeparator == c.Delimiter {
		return &Error{Kind: ErrInvalid, Detail: "decimal separator and delimiter must differ"}
	}
	if strings.TrimSpace(c.DateFormat) == "" {
		return &Error{Kind: ErrInvalid, Detail: "date format is required"}
	}
	if c.HeaderSkipLines < 0 {
		return &Error{Kind: ErrInvalid, Detail: fmt.Sprintf("header skip lines must be >= 0, got %d", c.HeaderSkipLines)}
	}
	if c.Encoding != "" {
		if _, err := htmlindex.Get(c.Encoding); err != nil {
			return &Error{Kind: ErrInvalid, Detail: fmt.Sprintf("unsupported encoding %q", c.Encoding)}
		}
	}
	return nil
}

func compileStrategy(field CanonicalField, s ColumnStrategy) (ColumnStrategy, error) {
	switch s.Kind {
	case StrategyUnused:
	case StrategyName:
		if strings.TrimSpace(s.Column) == "" {
			return s, &Error{Kind: ErrBadColumn, Field: field, Detail: "name strategy needs a column"}
		}
	case StrategyJoin:
		if len(s.Columns) == 0 {
			return s, &Error{Kind: ErrBadColumn, Field: field, Detail: "join strategy needs at least one column"}
		}
	case StrategyRegex:
		if len(s.Sources) == 0 {
			return s, &Error{Kind: ErrBadRegex, Field: field, Detail: "regex strategy needs at least one source"}
		}
		sources := make([]RegexSource, len(s.Sources))
		for i, src := range s.Sources {
			if strings.TrimSpace(src.Column) == "" {
				return s, &Error{Kind: ErrBadColumn, Field: field, Detail: fmt.Sprintf("regex source %d has no column", i+1)}
			}
			re, err := pattern.Compile(src.Pattern, false)
			if err != nil {
				return s, &Error{Kind: ErrBadRegex, Field: field, Detail: fmt.Sprintf("source %q", src.Column), Err: err}
			}
			sources[i] = RegexSource{Column: src.Column, Pattern: src.Pattern, re: re}
		}
		s.Sources = sources
	default:
		return s, &Error{Kind: ErrInvalid, Field: field, Detail: fmt.Sprintf("unknown strategy kind %d", s.Kind)}
	}
	return s, nil
}

// CheckHeader verifies that every column reference resolves against h.
// Join tolerates absent columns as long as at least one is present.
func (c *FormatConfig) CheckHeader(h *Header) error {
	for _, field := range ExtractedFields {
		s, ok := c.Columns[field]
		if !ok {
			continue
		}
		switch s.Kind {
		case StrategyName:
			if !h.Has(s.Column) {
				return h.missing(field, s.Column)
			}
		case StrategyJoin:
			found := false
			for _, col := range s.Columns {
				if h.Has(col) {
					found = true
					break
				}
			}
			if !found {
				return h.missing(field, strings.Join(s.Columns, ", "))
			}
		case StrategyRegex:
			for _, src := range s.Sources {
				if !h.Has(src.Column) {
					return h.missing(field, src.Column)
				}
			}
		}
	}
	return nil
}

func fieldNames() []string {
	names := make([]string, len(ExtractedFields))
	for i, f := range ExtractedFields {
		names[i] = string(f)
	}
	return names
}
