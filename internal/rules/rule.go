// Package rules assigns categories to transactions with user-defined rules.
package rules

import (
	"fmt"
	"slices"

	"github.com/cleared-dev/tally/internal/model"
)

// AccountFilter restricts a rule to some accounts. The zero value applies to
// every account.
type AccountFilter struct {
	ids []model.AccountID
}

// AllAccounts applies to every account.
func AllAccounts() AccountFilter { return AccountFilter{} }

// OnlyAccounts applies to the listed accounts. With no ids it is AllAccounts.
func OnlyAccounts(ids ...model.AccountID) AccountFilter {
	if len(ids) == 0 {
		return AllAccounts()
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return AccountFilter{ids: slices.Compact(out)}
}

// All reports whether the filter applies to every account.
func (f AccountFilter) All() bool { return len(f.ids) == 0 }

// IDs returns the accounts of a restricted filter, sorted; nil for All.
func (f AccountFilter) IDs() []model.AccountID { return slices.Clone(f.ids) }

// Includes reports whether the filter applies to account.
func (f AccountFilter) Includes(account model.AccountID) bool {
	if f.All() {
		return true
	}
	_, found := slices.BinarySearch(f.ids, account)
	return found
}

// Union combines filters; All absorbs everything.
func (f AccountFilter) Union(other AccountFilter) AccountFilter {
	if f.All() || other.All() {
		return AllAccounts()
	}
	return OnlyAccounts(append(f.IDs(), other.ids...)...)
}

// Rule assigns Category to transactions satisfying ConditionLogic over
// Conditions. Condition i in the logic is Conditions[i-1].
type Rule struct {
	ID             int64
	Description    string
	Category       model.CategoryID
	Accounts       AccountFilter
	Enabled        bool
	Conditions     []Condition
	ConditionLogic string
	Priority       int
}

// Compiled is a validated rule ready for evaluation.
type Compiled struct {
	Rule     Rule
	Expr     Expr
	matchers []*matcher
}

// Compile validates r: it needs a category and at least one condition, every
// condition must compile, and the logic must parse over those conditions.
func Compile(r Rule) (*Compiled, error) {
	if r.Category == "" {
		return nil, &RuleError{RuleID: r.ID, Err: fmt.Errorf("%w: no category", ErrInvalidRule)}
	}
	if len(r.Conditions) == 0 {
		return nil, &RuleError{RuleID: r.ID, Err: fmt.Errorf("%w: no conditions", ErrInvalidRule)}
	}
	c := &Compiled{Rule: r, matchers: make([]*matcher, len(r.Conditions))}
	c.Rule.Conditions = slices.Clone(r.Conditions)
	for i, cond := range r.Conditions {
		m, err := compileCondition(i+1, cond)
		if err != nil {
			return nil, &RuleError{RuleID: r.ID, Err: err}
		}
		c.matchers[i] = m
	}
	expr, err := ParseLogic(r.ConditionLogic, len(r.Conditions))
	if err != nil {
		return nil, &RuleError{RuleID: r.ID, Err: err}
	}
	c.Expr = expr
	return c, nil
}

// Applies reports whether the rule covers the subject's account.
func (c *Compiled) Applies(s model.Classifiable) bool {
	return c.Rule.Accounts.Includes(s.AccountID)
}

// Eval evaluates the logic against s, ignoring Enabled and Accounts.
func (c *Compiled) Eval(s model.Classifiable) bool {
	memo := make([]int8, len(c.matchers)) // 0 unknown, 1 false, 2 true
	return c.Expr.Eval(func(i int) bool {
		if memo[i-1] == 0 {
			memo[i-1] = 1
			if c.matchers[i-1].matches(s) {
				memo[i-1] = 2
			}
		}
		return memo[i-1] == 2
	})
}

// Matches reports whether an enabled rule covers s's account and its logic
// holds.
func (c *Compiled) Matches(s model.Classifiable) bool {
	return c.Rule.Enabled && c.Applies(s) && c.Eval(s)
}
