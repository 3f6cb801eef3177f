package categorize

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/format"
	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
	"github.com/cleared-dev/tally/internal/store"
)

var _ importer.Store = (*store.Store)(nil)
var _ Store = (*store.Store)(nil)

func seeded(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	data, err := os.ReadFile("../../testdata/chase_checking.csv")
	require.NoError(t, err)
	p := importer.NewPipeline(format.DefaultRegistry(), s, nil)
	report, err := p.Run(context.Background(), "chase", "chase", "", data)
	require.NoError(t, err)
	require.Len(t, report.Inserted, 6)
	return s
}

func loadRules(t *testing.T, doc string) ([]rules.Rule, []rules.BrokenRule) {
	t.Helper()
	rs, broken, err := rules.Decode([]byte(doc))
	require.NoError(t, err)
	return rs, broken
}

const softwareRules = `
rules:
  - id: 1
    category: software
    conditions:
      - {column: description, type: regex, value: "github|figma|google"}
  - id: 2
    category: income
    conditions:
      - {column: amount, type: amountRange, min_amount: 0}
  - id: 3
    category: broken
    conditions:
      - {column: description, type: contains, value: x}
    logic: 1 OR 2
`

func TestService_Run(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	rs, broken := loadRules(t, softwareRules)

	report, err := NewService(s, nil).Run(ctx, rs, broken, Options{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 4, report.Categorized)
	assert.Equal(t, 2, report.Unclassified)
	assert.Equal(t, []int64{3}, report.BrokenRules)
	assert.Contains(t, report.Summary(), "broken rules [3]")

	txns, err := s.ListTransactions(ctx, store.Filter{})
	require.NoError(t, err)
	byDesc := map[string]*model.CategoryID{}
	for _, txn := range txns {
		byDesc[txn.Description] = txn.Category
	}
	require.NotNil(t, byDesc["GITHUB *PRO SUBSCRIPTION"])
	assert.Equal(t, model.CategoryID("software"), *byDesc["GITHUB *PRO SUBSCRIPTION"])
	require.NotNil(t, byDesc["ACME CONSULTING INVOICE 1042"])
	assert.Equal(t, model.CategoryID("income"), *byDesc["ACME CONSULTING INVOICE 1042"])
	assert.Nil(t, byDesc["USPS PO 1234"])
}

func TestService_DryRunWritesNothing(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	rs, _ := loadRules(t, softwareRules)

	report, err := NewService(s, nil).Run(ctx, rs, nil, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 4, report.Categorized)
	assert.Len(t, report.Results, 4)

	left, err := s.ListUnclassified(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 6)
}

func TestService_Idempotent(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	rs, _ := loadRules(t, softwareRules)
	svc := NewService(s, nil)

	_, err := svc.Run(ctx, rs, nil, Options{})
	require.NoError(t, err)

	again, err := svc.Run(ctx, rs, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Total)
	assert.Zero(t, again.Categorized)
}

func TestService_HumanOverrideSurvives(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	txns, err := s.ListUnclassified(ctx)
	require.NoError(t, err)
	github := txns[0]
	require.Equal(t, "GITHUB *PRO SUBSCRIPTION", github.Description)
	require.NoError(t, s.SetCategory(ctx, github.ID, "hosting"))

	rs, _ := loadRules(t, softwareRules)
	_, err = NewService(s, nil).Run(ctx, rs, nil, Options{})
	require.NoError(t, err)

	all, err := s.ListTransactions(ctx, store.Filter{})
	require.NoError(t, err)
	for _, txn := range all {
		if txn.ID == github.ID {
			assert.Equal(t, model.CategoryID("hosting"), *txn.Category)
			assert.True(t, txn.Checked)
		}
	}
}

type failingStore struct {
	txns []model.StoredTransaction
}

func (f failingStore) ListUnclassified(context.Context) ([]model.StoredTransaction, error) {
	return f.txns, nil
}

func (f failingStore) AssignCategories(context.Context, []store.Assignment) (int, error) {
	return 0, &store.StorageError{Op: "assign categories", Err: errors.New("disk I/O error")}
}

func TestService_StorageFailure(t *testing.T) {
	fs := failingStore{txns: []model.StoredTransaction{{ID: 1, CanonicalTransaction: model.CanonicalTransaction{Description: "GITHUB"}}}}
	rs, _ := loadRules(t, softwareRules)

	_, err := NewService(fs, nil).Run(context.Background(), rs, nil, Options{})
	require.Error(t, err)
	var se *store.StorageError
	assert.ErrorAs(t, err, &se)
}

func TestService_Canceled(t *testing.T) {
	fs := failingStore{txns: make([]model.StoredTransaction, 10)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(fs, nil).Run(ctx, nil, nil, Options{Workers: 3})
	assert.ErrorIs(t, err, context.Canceled)
}
