package rules

import (
	"cmp"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/cleared-dev/tally/internal/model"
)

// BrokenRule is a rule the engine skipped because it does not compile.
type BrokenRule struct {
	ID  int64
	Err error
}

// Match is the outcome of a successful classification.
type Match struct {
	RuleID   int64
	Category model.CategoryID
}

// Engine classifies transactions against a fixed snapshot of rules. It is
// safe for concurrent use.
type Engine struct {
	rules  []*Compiled // enabled, sorted by (priority, id)
	broken []BrokenRule
}

// NewEngine compiles rules into an engine. Disabled rules are dropped.
// Broken rules are skipped and reported by Broken; they never stop the
// other rules from being used.
func NewEngine(rules []Rule, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	e := &Engine{}
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		c, err := Compile(r)
		if err != nil {
			logger.Warn("skipping broken rule", "rule_id", r.ID, "err", err)
			e.broken = append(e.broken, BrokenRule{ID: r.ID, Err: err})
			continue
		}
		e.rules = append(e.rules, c)
	}
	slices.SortFunc(e.rules, func(a, b *Compiled) int {
		return cmp.Or(cmp.Compare(a.Rule.Priority, b.Rule.Priority), cmp.Compare(a.Rule.ID, b.Rule.ID))
	})
	return e
}

// Classify returns the category of the first rule, by (priority, id), that
// covers s's account and whose logic holds.
func (e *Engine) Classify(s model.Classifiable) (Match, bool) {
	for _, c := range e.rules {
		if c.Applies(s) && c.Eval(s) {
			return Match{RuleID: c.Rule.ID, Category: c.Rule.Category}, true
		}
	}
	return Match{}, false
}

// Broken returns the rules that were skipped, in input order.
func (e *Engine) Broken() []BrokenRule {
	return slices.Clone(e.broken)
}

// BrokenIDs returns the ids of the skipped rules.
func (e *Engine) BrokenIDs() []int64 {
	ids := make([]int64, len(e.broken))
	for i, b := range e.broken {
		ids[i] = b.ID
	}
	return ids
}

// Len returns how many rules are in use.
func (e *Engine) Len() int { return len(e.rules) }

// Classify is a one-shot form of NewEngine(rules).Classify(s).
func Classify(s model.Classifiable, rules []Rule) (model.CategoryID, bool) {
	m, ok := NewEngine(rules, nil).Classify(s)
	return m.Category, ok
}
