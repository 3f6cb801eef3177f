package importer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cleared-dev/tally/internal/format"
	"github.com/cleared-dev/tally/internal/model"
)

// Store is the storage the pipeline needs: a dedup lookup against the
// (account, import hash) index and an atomic batch insert. InsertBatch
// returns the hashes it skipped because another writer stored them first.
type Store interface {
	IsDuplicate(ctx context.Context, account model.AccountID, importHash string) (bool, error)
	InsertBatch(ctx context.Context, batch model.ImportBatch) ([]string, error)
}

// Report is the outcome of one import run.
type Report struct {
	BatchID           string
	AccountID         model.AccountID
	Format            string
	Version           string
	Inserted          []model.CanonicalTransaction
	SkippedDuplicates int
	RowErrors         []RowError
	Warnings          []RowWarning
	TotalRows         int
}

// Summary is a one-line human-readable account of the run.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: %d rows, %d inserted, %d duplicates, %d errors",
		r.AccountID, r.TotalRows, len(r.Inserted), r.SkippedDuplicates, len(r.RowErrors))
}

// Pipeline imports bank statements into the store.
type Pipeline struct {
	formats *format.Registry
	store   Store
	logger  *log.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[model.AccountID]*sync.Mutex
}

// NewPipeline creates a pipeline. A nil logger discards output.
func NewPipeline(formats *format.Registry, store Store, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{
		formats: formats,
		store:   store,
		logger:  logger,
		now:     time.Now,
		locks:   make(map[model.AccountID]*sync.Mutex),
	}
}

// Run imports data for account using (formatName, version); an empty version
// selects the format default. Bad rows are reported and skipped. A format
// error or a storage failure aborts the run and nothing is inserted.
func (p *Pipeline) Run(ctx context.Context, account model.AccountID, formatName, version string, data []byte) (*Report, error) {
	cfg, err := p.formats.Resolve(formatName, version)
	if err != nil {
		return nil, err
	}
	if version == "" {
		if f, ok := p.formats.Get(formatName); ok {
			version = f.DefaultVersion
		}
	}

	_, records, err := ReadRecords(cfg, data)
	if err != nil {
		return nil, fmt.Errorf("reading %s statement: %w", formatName, err)
	}

	report := &Report{
		BatchID:   uuid.NewString(),
		AccountID: account,
		Format:    formatName,
		Version:   version,
		TotalRows: len(records),
	}
	logger := p.logger.With("account", account, "format", formatName, "version", version, "batch", report.BatchID)

	// Dedup-then-insert must not interleave with another run on the same account.
	unlock := p.lock(account)
	defer unlock()

	seen := make(map[string]bool)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rec.Err != nil {
			report.RowErrors = append(report.RowErrors, *rec.Err)
			logger.Debug("malformed row", "row", rec.Num, "err", rec.Err.Detail)
			continue
		}

		txn, warnings, err := ParseRow(cfg, rec.Row, account, rec.Num)
		for _, w := range warnings {
			logger.Warn("value dropped", "row", w.Row, "field", w.Field, "detail", w.Detail)
		}
		report.Warnings = append(report.Warnings, warnings...)
		if err != nil {
			re := err.(*RowError)
			report.RowErrors = append(report.RowErrors, *re)
			logger.Debug("row rejected", "row", re.Row, "reason", re.Reason, "detail", re.Detail)
			continue
		}

		if seen[txn.ImportHash] {
			report.SkippedDuplicates++
			continue
		}
		dup, err := p.store.IsDuplicate(ctx, account, txn.ImportHash)
		if err != nil {
			return nil, err
		}
		seen[txn.ImportHash] = true
		if dup {
			report.SkippedDuplicates++
			continue
		}
		report.Inserted = append(report.Inserted, txn)
	}

	batch := model.ImportBatch{
		ID:           report.BatchID,
		AccountID:    account,
		Format:       formatName,
		Version:      version,
		ImportedAt:   p.now().UTC(),
		TotalRows:    report.TotalRows,
		Duplicates:   report.SkippedDuplicates,
		Errors:       len(report.RowErrors),
		Transactions: report.Inserted,
	}
	skipped, err := p.store.InsertBatch(ctx, batch)
	if err != nil {
		logger.Error("import aborted", "err", err)
		return nil, err
	}
	if len(skipped) > 0 {
		logger.Debug("rows stored by a concurrent import", "count", len(skipped))
		report.dropStored(skipped)
	}

	logger.Info("import finished",
		"rows", report.TotalRows,
		"inserted", len(report.Inserted),
		"duplicates", report.SkippedDuplicates,
		"errors", len(report.RowErrors))
	return report, nil
}

// dropStored moves transactions whose hashes turned out to be stored already
// from Inserted to SkippedDuplicates.
func (r *Report) dropStored(hashes []string) {
	stored := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		stored[h] = true
	}
	kept := r.Inserted[:0]
	for _, txn := range r.Inserted {
		if stored[txn.ImportHash] {
			r.SkippedDuplicates++
			continue
		}
		kept = append(kept, txn)
	}
	r.Inserted = kept
}

func (p *Pipeline) lock(account model.AccountID) func() {
	p.mu.Lock()
	m, ok := p.locks[account]
	if !ok {
		m = &sync.Mutex{}
		p.locks[account] = m
	}
	p.mu.Unlock()
	m.Lock()
	return m.Unlock
}
