package rules

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

// ConditionResult is one condition's verdict within an Explanation.
type ConditionResult struct {
	Index     int
	Condition Condition
	Matched   bool
}

// Explanation describes how a rule evaluated against one transaction.
type Explanation struct {
	RuleID         int64
	Account        model.AccountID
	AccountMatched bool
	Logic          string // normalized
	LogicResult    bool
	Conditions     []ConditionResult
	Matched        bool
}

// Fired returns the indices of the conditions that held.
func (e Explanation) Fired() []int {
	var out []int
	for _, c := range e.Conditions {
		if c.Matched {
			out = append(out, c.Index)
		}
	}
	return out
}

func (e Explanation) String() string {
	var b strings.Builder
	verdict := "no match"
	if e.Matched {
		verdict = "match"
	}
	fmt.Fprintf(&b, "rule %d: %s\n", e.RuleID, verdict)
	if e.AccountMatched {
		fmt.Fprintf(&b, "  account %s: covered\n", e.Account)
	} else {
		fmt.Fprintf(&b, "  account %s: not covered by the rule's account filter\n", e.Account)
	}
	for _, c := range e.Conditions {
		mark := " "
		if c.Matched {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] %d: %s\n", mark, c.Index, c.Condition)
	}
	fmt.Fprintf(&b, "  logic: %s => %t\n", e.Logic, e.LogicResult)
	return b.String()
}

// Explain evaluates r against s condition by condition. Enabled is ignored
// so a disabled rule can be tried out before switching it on.
func Explain(r Rule, s model.Classifiable) (Explanation, error) {
	c, err := Compile(r)
	if err != nil {
		return Explanation{}, err
	}
	results := make([]bool, len(c.matchers))
	ex := Explanation{
		RuleID:         r.ID,
		Account:        s.AccountID,
		AccountMatched: c.Applies(s),
		Logic:          c.Expr.String(),
		Conditions:     make([]ConditionResult, len(c.matchers)),
	}
	for i, m := range c.matchers {
		results[i] = m.matches(s)
		ex.Conditions[i] = ConditionResult{Index: i + 1, Condition: m.cond, Matched: results[i]}
	}
	ex.LogicResult = c.Expr.Eval(func(i int) bool { return results[i-1] })
	ex.Matched = ex.AccountMatched && ex.LogicResult
	return ex, nil
}
