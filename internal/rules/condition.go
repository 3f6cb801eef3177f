package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/pattern"
)

// Column is the transaction field a condition inspects.
type Column string

const (
	ColumnDescription        Column = "description"
	ColumnRecipientApplicant Column = "recipientApplicant"
	ColumnIBAN               Column = "iban"
	ColumnAmount             Column = "amount"
)

// Columns lists every valid Column.
var Columns = []Column{ColumnDescription, ColumnRecipientApplicant, ColumnIBAN, ColumnAmount}

// MatchType is how a condition compares its column.
type MatchType string

const (
	Contains    MatchType = "contains"
	Equals      MatchType = "equals"
	StartsWith  MatchType = "startsWith"
	EndsWith    MatchType = "endsWith"
	Regex       MatchType = "regex"
	AmountRange MatchType = "amountRange"
)

// MatchTypes lists every valid MatchType.
var MatchTypes = []MatchType{Contains, Equals, StartsWith, EndsWith, Regex, AmountRange}

// Condition is one predicate of a rule. Value is used by every type except
// AmountRange, which uses the bounds instead; an invalid bound means
// unbounded on that side.
type Condition struct {
	Column        Column
	Type          MatchType
	Value         string
	CaseSensitive bool
	MinAmount     decimal.NullDecimal
	MaxAmount     decimal.NullDecimal
}

func (c Condition) String() string {
	if c.Type == AmountRange {
		lo, hi := "-inf", "+inf"
		if c.MinAmount.Valid {
			lo = c.MinAmount.Decimal.String()
		}
		if c.MaxAmount.Valid {
			hi = c.MaxAmount.Decimal.String()
		}
		return fmt.Sprintf("%s in [%s, %s]", c.Column, lo, hi)
	}
	s := fmt.Sprintf("%s %s %q", c.Column, c.Type, c.Value)
	if c.CaseSensitive {
		s += " (case-sensitive)"
	}
	return s
}

// matcher is a compiled Condition.
type matcher struct {
	cond   Condition
	folded string // Value, lowercased unless case-sensitive
	number decimal.Decimal
	re     *regexp.Regexp
}

func compileCondition(index int, c Condition) (*matcher, error) {
	if !validColumn(c.Column) {
		return nil, &ConditionError{Index: index, Detail: fmt.Sprintf("unknown column %q", c.Column)}
	}
	m := &matcher{cond: c}
	switch c.Type {
	case AmountRange:
		if c.Column != ColumnAmount {
			return nil, &ConditionError{Index: index, Detail: fmt.Sprintf("amountRange applies to amount, not %s", c.Column)}
		}
		if c.MinAmount.Valid && c.MaxAmount.Valid && c.MinAmount.Decimal.GreaterThan(c.MaxAmount.Decimal) {
			return nil, &ConditionError{Index: index, Detail: "minimum amount exceeds maximum"}
		}
		return m, nil
	case Contains, Equals, StartsWith, EndsWith, Regex:
	default:
		return nil, &ConditionError{Index: index, Detail: fmt.Sprintf("unknown type %q", c.Type)}
	}

	if c.Value == "" {
		return nil, &ConditionError{Index: index, Detail: fmt.Sprintf("%s needs a value", c.Type)}
	}
	m.folded = c.Value
	if !c.CaseSensitive {
		m.folded = strings.ToLower(c.Value)
	}

	switch {
	case c.Type == Regex:
		re, err := pattern.Compile(c.Value, !c.CaseSensitive)
		if err != nil {
			return nil, &ConditionError{Index: index, Detail: "bad regex", Err: err}
		}
		m.re = re
	case c.Type == Equals && c.Column == ColumnAmount:
		d, err := decimal.NewFromString(strings.TrimSpace(c.Value))
		if err != nil {
			return nil, &ConditionError{Index: index, Detail: fmt.Sprintf("amount %q is not a number", c.Value), Err: err}
		}
		m.number = d
	}
	return m, nil
}

func validColumn(c Column) bool {
	for _, known := range Columns {
		if c == known {
			return true
		}
	}
	return false
}

// subject returns the inspected value; ok is false when it is absent.
func (m *matcher) subject(s model.Classifiable) (string, bool) {
	switch m.cond.Column {
	case ColumnDescription:
		return s.Description, true
	case ColumnRecipientApplicant:
		return s.RecipientApplicant, true
	case ColumnIBAN:
		if s.IBAN == nil {
			return "", false
		}
		return *s.IBAN, true
	case ColumnAmount:
		return s.Amount.String(), true
	}
	return "", false
}

func (m *matcher) matches(s model.Classifiable) bool {
	c := m.cond
	if c.Type == AmountRange {
		if c.MinAmount.Valid && s.Amount.LessThan(c.MinAmount.Decimal) {
			return false
		}
		if c.MaxAmount.Valid && s.Amount.GreaterThan(c.MaxAmount.Decimal) {
			return false
		}
		return true
	}
	if c.Type == Equals && c.Column == ColumnAmount {
		return s.Amount.Equal(m.number)
	}

	v, ok := m.subject(s)
	if !ok {
		return false
	}
	if c.Type == Regex {
		return m.re.MatchString(pattern.Subject(v))
	}
	if !c.CaseSensitive {
		v = strings.ToLower(v)
	}
	switch c.Type {
	case Contains:
		return strings.Contains(v, m.folded)
	case Equals:
		return v == m.folded
	case StartsWith:
		return strings.HasPrefix(v, m.folded)
	case EndsWith:
		return strings.HasSuffix(v, m.folded)
	}
	return false
}

// Matches compiles c and evaluates it against s.
func Matches(c Condition, s model.Classifiable) (bool, error) {
	m, err := compileCondition(1, c)
	if err != nil {
		return false, err
	}
	return m.matches(s), nil
}
