package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func txn(account model.AccountID, day int, amount, desc, hash string) model.CanonicalTransaction {
	return model.CanonicalTransaction{
		AccountID:          account,
		DateValue:          time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
		Description:        desc,
		RecipientApplicant: "someone",
		Amount:             decimal.RequireFromString(amount),
		ImportHash:         hash,
	}
}

func batch(id string, account model.AccountID, txns ...model.CanonicalTransaction) model.ImportBatch {
	return model.ImportBatch{
		ID:           id,
		AccountID:    account,
		Format:       "chase",
		Version:      "checking",
		ImportedAt:   time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
		TotalRows:    len(txns) + 1,
		Duplicates:   1,
		Transactions: txns,
	}
}

func insert(t *testing.T, s *Store, b model.ImportBatch) {
	t.Helper()
	skipped, err := s.InsertBatch(context.Background(), b)
	require.NoError(t, err)
	require.Empty(t, skipped)
}

func TestStore_InsertAndList(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	created := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	iban := "DE89370400440532013000"
	a := txn("giro", 3, "-12.50", "REWE", "h1")
	a.DateCreation = &created
	a.IBAN = &iban
	b := txn("giro", 2, "1000", "Salary", "h2")

	insert(t, s, batch("b1", "giro", a, b))

	got, err := s.ListTransactions(ctx, Filter{AccountID: "giro"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by value date.
	assert.Equal(t, "Salary", got[0].Description)
	assert.Equal(t, "REWE", got[1].Description)
	assert.True(t, decimal.RequireFromString("-12.5").Equal(got[1].Amount))
	assert.Equal(t, a.DateValue, got[1].DateValue)
	require.NotNil(t, got[1].DateCreation)
	assert.Equal(t, created, *got[1].DateCreation)
	require.NotNil(t, got[1].IBAN)
	assert.Equal(t, iban, *got[1].IBAN)
	assert.Nil(t, got[0].IBAN)
	assert.Nil(t, got[0].BIC)
	assert.Nil(t, got[0].Category)
	assert.False(t, got[0].Checked)
	assert.Equal(t, "b1", got[0].BatchID)
	assert.Equal(t, "h2", got[0].ImportHash)
}

func TestStore_IsDuplicate(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	insert(t, s, batch("b1", "giro", txn("giro", 1, "1", "x", "h1")))

	dup, err := s.IsDuplicate(ctx, "giro", "h1")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = s.IsDuplicate(ctx, "savings", "h1")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = s.IsDuplicate(ctx, "giro", "h2")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestStore_InsertBatchSkipsStoredHashes(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	insert(t, s, batch("b1", "giro", txn("giro", 1, "1", "x", "h1")))

	skipped, err := s.InsertBatch(ctx, batch("b2", "giro", txn("giro", 2, "2", "y", "h2"), txn("giro", 1, "1", "x", "h1")))
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, skipped)

	got, err := s.ListTransactions(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	runs, err := s.ListImports(ctx, "giro")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	var b2 model.ImportBatch
	for _, r := range runs {
		if r.ID == "b2" {
			b2 = r
		}
	}
	assert.Equal(t, 1, b2.Inserted)
	assert.Equal(t, 2, b2.Duplicates, "one from the pipeline, one from the conflict")
}

func TestStore_InsertBatchIsAtomic(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	insert(t, s, batch("b1", "giro", txn("giro", 1, "1", "x", "h1")))

	// Reusing a batch id fails the import record, so none of its rows land.
	_, err := s.InsertBatch(ctx, batch("b1", "giro", txn("giro", 2, "2", "y", "h2"), txn("giro", 3, "3", "z", "h3")))
	require.Error(t, err)
	var se *StorageError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "insert batch", se.Op)

	got, err := s.ListTransactions(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1, "the failed batch left nothing behind")

	runs, err := s.ListImports(ctx, "")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_AssignCategoriesOnlyFillsNull(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	insert(t, s, batch("b1", "giro",
		txn("giro", 1, "-5", "coffee", "h1"),
		txn("giro", 2, "-50", "groceries", "h2"),
	))

	all, err := s.ListUnclassified(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, s.SetCategory(ctx, all[0].ID, "treats"))

	n, err := s.AssignCategories(ctx, []Assignment{
		{TransactionID: all[0].ID, Category: "food"},
		{TransactionID: all[1].ID, Category: "food"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.ListTransactions(ctx, Filter{})
	require.NoError(t, err)
	require.NotNil(t, got[0].Category)
	assert.Equal(t, model.CategoryID("treats"), *got[0].Category)
	assert.True(t, got[0].Checked)
	require.NotNil(t, got[1].Category)
	assert.Equal(t, model.CategoryID("food"), *got[1].Category)
	assert.False(t, got[1].Checked)

	left, err := s.ListUnclassified(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestStore_SetCategoryNotFound(t *testing.T) {
	s := openTest(t)
	err := s.SetCategory(context.Background(), 42, "food")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListImports(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	insert(t, s, batch("b1", "giro", txn("giro", 1, "1", "x", "h1")))
	b2 := batch("b2", "savings")
	b2.ImportedAt = b2.ImportedAt.Add(time.Hour)
	insert(t, s, b2)

	runs, err := s.ListImports(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b2", runs[0].ID)
	assert.Equal(t, 0, runs[0].Inserted)

	runs, err = s.ListImports(ctx, "giro")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Inserted)
	assert.Equal(t, 2, runs[0].TotalRows)
	assert.Equal(t, 1, runs[0].Duplicates)
	assert.Equal(t, "chase", runs[0].Format)
	assert.Equal(t, time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC), runs[0].ImportedAt)
}

func TestOpen_FileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	insert(t, s, batch("b1", "giro", txn("giro", 1, "1", "x", "h1")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	dup, err := s.IsDuplicate(ctx, "giro", "h1")
	require.NoError(t, err)
	assert.True(t, dup)
}
