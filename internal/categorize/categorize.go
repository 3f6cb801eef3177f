// Package categorize runs the rule engine over unclassified transactions.
package categorize

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
	"github.com/cleared-dev/tally/internal/store"
)

// Store is the storage categorization reads from and writes to.
type Store interface {
	ListUnclassified(ctx context.Context) ([]model.StoredTransaction, error)
	AssignCategories(ctx context.Context, assignments []store.Assignment) (int, error)
}

// Result is one transaction a rule matched.
type Result struct {
	TransactionID int64
	RuleID        int64
	Category      model.CategoryID
}

// Report is the outcome of one classification run.
type Report struct {
	Total        int // unclassified transactions examined
	Categorized  int // categories written (or that would be, in a dry run)
	Unclassified int // still without a category
	BrokenRules  []int64
	Results      []Result
	DryRun       bool
}

// Summary is a one-line human-readable account of the run.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d examined, %d categorized, %d unclassified", r.Total, r.Categorized, r.Unclassified)
	if len(r.BrokenRules) > 0 {
		s += fmt.Sprintf(", broken rules %v", r.BrokenRules)
	}
	if r.DryRun {
		s += " (dry run)"
	}
	return s
}

// Options tunes a run.
type Options struct {
	DryRun  bool
	Workers int // <= 0 means GOMAXPROCS
}

// Service classifies stored transactions.
type Service struct {
	store  Store
	logger *log.Logger
}

// NewService creates a Service. A nil logger discards output.
func NewService(s Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{store: s, logger: logger}
}

// Run classifies every transaction that has no category. Rules that fail to
// compile are skipped and listed in the report together with loadBroken,
// the rules that could not be loaded at all. Categories are only written to
// transactions that still have none, so human overrides survive re-runs.
func (s *Service) Run(ctx context.Context, ruleSet []rules.Rule, loadBroken []rules.BrokenRule, opts Options) (*Report, error) {
	engine := rules.NewEngine(ruleSet, s.logger)

	txns, err := s.store.ListUnclassified(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing unclassified: %w", err)
	}

	matches, err := classifyAll(ctx, engine, txns, opts.Workers)
	if err != nil {
		return nil, err
	}

	report := &Report{Total: len(txns), DryRun: opts.DryRun}
	for _, b := range loadBroken {
		report.BrokenRules = append(report.BrokenRules, b.ID)
	}
	report.BrokenRules = append(report.BrokenRules, engine.BrokenIDs()...)
	slices.Sort(report.BrokenRules)
	report.BrokenRules = slices.Compact(report.BrokenRules)

	var assignments []store.Assignment
	for i, m := range matches {
		if m == nil {
			continue
		}
		report.Results = append(report.Results, Result{TransactionID: txns[i].ID, RuleID: m.RuleID, Category: m.Category})
		assignments = append(assignments, store.Assignment{TransactionID: txns[i].ID, Category: m.Category})
	}

	if opts.DryRun {
		report.Categorized = len(assignments)
	} else if len(assignments) > 0 {
		n, err := s.store.AssignCategories(ctx, assignments)
		if err != nil {
			return nil, fmt.Errorf("writing categories: %w", err)
		}
		report.Categorized = n
	}
	report.Unclassified = report.Total - report.Categorized

	s.logger.Info("classification finished",
		"examined", report.Total,
		"categorized", report.Categorized,
		"unclassified", report.Unclassified,
		"broken_rules", len(report.BrokenRules),
		"dry_run", opts.DryRun)
	return report, nil
}

// classifyAll evaluates txns in parallel chunks; the result at i belongs to
// txns[i].
func classifyAll(ctx context.Context, engine *rules.Engine, txns []model.StoredTransaction, workers int) ([]*rules.Match, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]*rules.Match, len(txns))
	if len(txns) == 0 {
		return out, nil
	}
	chunk := (len(txns) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(txns); start += chunk {
		end := min(start+chunk, len(txns))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if m, ok := engine.Classify(txns[i].Classifiable()); ok {
					out[i] = &m
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
