package rules

import (
	"fmt"
	"strings"
)

// Merge combines rules into one rule that matches whenever any of them
// would. Conditions are concatenated in rule order and each rule's logic is
// renumbered and ORed with the others. The result takes its id, category,
// priority and enabled flag from the first rule; accounts are the union of
// all filters.
func Merge(rules []Rule) (Rule, error) {
	if len(rules) < 2 {
		return Rule{}, fmt.Errorf("%w: merging needs at least two rules, got %d", ErrInvalidRule, len(rules))
	}

	first := rules[0]
	out := Rule{
		ID:       first.ID,
		Category: first.Category,
		Accounts: first.Accounts,
		Enabled:  first.Enabled,
		Priority: first.Priority,
	}
	var (
		parts []string
		descs []string
	)
	for i, r := range rules {
		if len(r.Conditions) == 0 {
			return Rule{}, &RuleError{RuleID: r.ID, Err: fmt.Errorf("%w: no conditions", ErrInvalidRule)}
		}
		expr, err := ParseLogic(r.ConditionLogic, len(r.Conditions))
		if err != nil {
			return Rule{}, &RuleError{RuleID: r.ID, Err: err}
		}
		sub := Renumber(expr, len(out.Conditions))
		s := sub.String()
		if _, ok := sub.(Or); ok {
			s = "(" + s + ")"
		}
		parts = append(parts, s)

		out.Conditions = append(out.Conditions, r.Conditions...)
		if i > 0 {
			out.Accounts = out.Accounts.Union(r.Accounts)
		}
		if r.Description != "" {
			descs = append(descs, r.Description)
		}
	}
	out.ConditionLogic = strings.Join(parts, " OR ")
	out.Description = strings.Join(descs, "; ")
	return out, nil
}
