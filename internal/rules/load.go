package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tally/internal/model"
)

// File is the on-disk shape of a rules file. JSON documents are accepted
// too, being valid YAML.
type File struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is a rule as written by users.
type RuleSpec struct {
	ID          int64           `yaml:"id"`
	Description string          `yaml:"description,omitempty"`
	Category    string          `yaml:"category"`
	Accounts    []string        `yaml:"accounts,omitempty"`
	Enabled     *bool           `yaml:"enabled,omitempty"` // default true
	Priority    int             `yaml:"priority,omitempty"`
	Conditions  []ConditionSpec `yaml:"conditions"`
	Logic       string          `yaml:"logic,omitempty"`
}

// ConditionSpec is a condition as written by users.
type ConditionSpec struct {
	Column        string `yaml:"column"`
	Type          string `yaml:"type"`
	Value         string `yaml:"value,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty"`
	MinAmount     string `yaml:"min_amount,omitempty"`
	MaxAmount     string `yaml:"max_amount,omitempty"`
}

// Decode parses a rules document. Rules that cannot even be converted (bad
// bounds, duplicate ids) are returned as broken instead of failing the
// document; only unreadable YAML is an error.
func Decode(data []byte) ([]Rule, []BrokenRule, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("parsing rules: %w", err)
	}

	var (
		rules  []Rule
		broken []BrokenRule
	)
	seen := make(map[int64]bool, len(f.Rules))
	for _, spec := range f.Rules {
		if seen[spec.ID] {
			broken = append(broken, BrokenRule{ID: spec.ID, Err: &RuleError{RuleID: spec.ID, Err: fmt.Errorf("%w: duplicate id", ErrInvalidRule)}})
			continue
		}
		seen[spec.ID] = true
		r, err := spec.Rule()
		if err != nil {
			broken = append(broken, BrokenRule{ID: spec.ID, Err: err})
			continue
		}
		rules = append(rules, r)
	}
	return rules, broken, nil
}

// LoadFile reads and decodes a rules file.
func LoadFile(path string) ([]Rule, []BrokenRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading rules: %w", err)
	}
	return Decode(data)
}

// DecodeRule parses a single rule, written the way one entry under "rules:"
// is. Unknown keys are errors. The result is not compiled.
func DecodeRule(data []byte) (Rule, error) {
	var spec RuleSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return Rule{}, errors.New("parsing rule: empty document")
		}
		return Rule{}, fmt.Errorf("parsing rule: %w", err)
	}
	return spec.Rule()
}

// Rule converts the file form into a Rule. The result is not compiled.
func (s RuleSpec) Rule() (Rule, error) {
	r := Rule{
		ID:             s.ID,
		Description:    s.Description,
		Category:       model.CategoryID(strings.TrimSpace(s.Category)),
		Enabled:        s.Enabled == nil || *s.Enabled,
		Priority:       s.Priority,
		ConditionLogic: s.Logic,
		Conditions:     make([]Condition, len(s.Conditions)),
	}
	ids := make([]model.AccountID, len(s.Accounts))
	for i, a := range s.Accounts {
		ids[i] = model.AccountID(strings.TrimSpace(a))
	}
	r.Accounts = OnlyAccounts(ids...)

	for i, cs := range s.Conditions {
		c := Condition{
			Column:        Column(cs.Column),
			Type:          MatchType(cs.Type),
			Value:         cs.Value,
			CaseSensitive: cs.CaseSensitive,
		}
		var err error
		if c.MinAmount, err = bound(cs.MinAmount); err != nil {
			return Rule{}, &RuleError{RuleID: s.ID, Err: &ConditionError{Index: i + 1, Detail: "bad min_amount", Err: err}}
		}
		if c.MaxAmount, err = bound(cs.MaxAmount); err != nil {
			return Rule{}, &RuleError{RuleID: s.ID, Err: &ConditionError{Index: i + 1, Detail: "bad max_amount", Err: err}}
		}
		r.Conditions[i] = c
	}
	return r, nil
}

func bound(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// Spec converts a rule back into its file form.
func Spec(r Rule) RuleSpec {
	s := RuleSpec{
		ID:          r.ID,
		Description: r.Description,
		Category:    string(r.Category),
		Priority:    r.Priority,
		Logic:       r.ConditionLogic,
		Conditions:  make([]ConditionSpec, len(r.Conditions)),
	}
	if !r.Enabled {
		s.Enabled = new(bool)
	}
	for _, id := range r.Accounts.IDs() {
		s.Accounts = append(s.Accounts, string(id))
	}
	for i, c := range r.Conditions {
		cs := ConditionSpec{
			Column:        string(c.Column),
			Type:          string(c.Type),
			Value:         c.Value,
			CaseSensitive: c.CaseSensitive,
		}
		if c.MinAmount.Valid {
			cs.MinAmount = c.MinAmount.Decimal.String()
		}
		if c.MaxAmount.Valid {
			cs.MaxAmount = c.MaxAmount.Decimal.String()
		}
		s.Conditions[i] = cs
	}
	return s
}

// Encode renders rules as a YAML rules document.
func Encode(rules ...Rule) ([]byte, error) {
	f := File{Rules: make([]RuleSpec, len(rules))}
	for i, r := range rules {
		f.Rules[i] = Spec(r)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	return buf.Bytes(), nil
}
