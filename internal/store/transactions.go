package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

const timeLayout = time.RFC3339

// IsDuplicate reports whether account already holds a transaction with
// importHash.
func (s *Store) IsDuplicate(ctx context.Context, account model.AccountID, importHash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ? AND import_hash = ?`,
		string(account), importHash).Scan(&n)
	if err != nil {
		return false, storageErr("dedup lookup", err)
	}
	return n > 0, nil
}

// InsertBatch records the import run and inserts its transactions in one
// database transaction. A transaction whose (account, import hash) is already
// stored, for example by a concurrent import, is skipped and its hash
// returned; the recorded counts include those skips. Any other failure rolls
// back the whole batch.
func (s *Store) InsertBatch(ctx context.Context, b model.ImportBatch) ([]string, error) {
	var skipped []string
	err := withTx(ctx, s.db, "insert batch", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO imports(id, account_id, format, version, imported_at, total_rows, inserted, duplicates, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, string(b.AccountID), b.Format, b.Version, b.ImportedAt.UTC().Format(timeLayout),
			b.TotalRows, len(b.Transactions), b.Duplicates, b.Errors)
		if err != nil {
			return fmt.Errorf("recording import %s: %w", b.ID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions(account_id, date_value, date_creation, description, recipient_applicant,
			iban, bic, amount, import_hash, batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, import_hash) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range b.Transactions {
			var created any
			if t.DateCreation != nil {
				created = t.DateCreation.UTC().Format(timeLayout)
			}
			res, err := stmt.ExecContext(ctx,
				string(t.AccountID), t.DateValue.UTC().Format(timeLayout), created, t.Description,
				t.RecipientApplicant, nullable(t.IBAN), nullable(t.BIC), t.Amount.String(), t.ImportHash, b.ID)
			if err != nil {
				return fmt.Errorf("inserting transaction %d: %w", i+1, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				skipped = append(skipped, t.ImportHash)
			}
		}

		if len(skipped) == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE imports SET inserted = ?, duplicates = ? WHERE id = ?`,
			len(b.Transactions)-len(skipped), b.Duplicates+len(skipped), b.ID)
		if err != nil {
			return fmt.Errorf("updating import %s: %w", b.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return skipped, nil
}

// Filter narrows ListTransactions. Zero values match everything.
type Filter struct {
	AccountID    model.AccountID
	Unclassified bool
}

// ListTransactions returns stored transactions ordered by value date, then id.
func (s *Store) ListTransactions(ctx context.Context, f Filter) ([]model.StoredTransaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, string(f.AccountID))
	}
	if f.Unclassified {
		where = append(where, "category IS NULL")
	}
	q := `SELECT id, account_id, date_value, date_creation, description, recipient_applicant,
		iban, bic, amount, import_hash, category, checked, batch_id FROM transactions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date_value, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	defer rows.Close()

	var out []model.StoredTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storageErr("list transactions", err)
		}
		out = append(out, t)
	}
	return out, storageErr("list transactions", rows.Err())
}

// ListUnclassified returns every transaction without a category.
func (s *Store) ListUnclassified(ctx context.Context) ([]model.StoredTransaction, error) {
	return s.ListTransactions(ctx, Filter{Unclassified: true})
}

// Assignment is one rule-derived category for one transaction.
type Assignment struct {
	TransactionID int64
	Category      model.CategoryID
}

// AssignCategories writes rule results in one database transaction. Rows
// that already carry a category are left alone; the count of rows actually
// written is returned.
func (s *Store) AssignCategories(ctx context.Context, assignments []Assignment) (int, error) {
	written := 0
	err := withTx(ctx, s.db, "assign categories", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE transactions SET category = ? WHERE id = ? AND category IS NULL`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range assignments {
			res, err := stmt.ExecContext(ctx, string(a.Category), a.TransactionID)
			if err != nil {
				return fmt.Errorf("categorizing %d: %w", a.TransactionID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			written += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// SetCategory records a human decision and marks the transaction checked.
func (s *Store) SetCategory(ctx context.Context, id int64, category model.CategoryID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE transactions SET category = ?, checked = 1 WHERE id = ?`, string(category), id)
	if err != nil {
		return storageErr("set category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("set category", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListImports returns the import runs for account, newest first. An empty
// account lists all runs. The returned batches carry no transactions.
func (s *Store) ListImports(ctx context.Context, account model.AccountID) ([]model.ImportBatch, error) {
	q := `SELECT id, account_id, format, version, imported_at, total_rows, inserted, duplicates, errors FROM imports`
	var args []any
	if account != "" {
		q += ` WHERE account_id = ?`
		args = append(args, string(account))
	}
	q += ` ORDER BY imported_at DESC, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr("list imports", err)
	}
	defer rows.Close()

	var out []model.ImportBatch
	for rows.Next() {
		var (
			b          model.ImportBatch
			acct       string
			importedAt string
		)
		if err := rows.Scan(&b.ID, &acct, &b.Format, &b.Version, &importedAt, &b.TotalRows, &b.Inserted, &b.Duplicates, &b.Errors); err != nil {
			return nil, storageErr("list imports", err)
		}
		b.AccountID = model.AccountID(acct)
		if b.ImportedAt, err = time.Parse(timeLayout, importedAt); err != nil {
			return nil, storageErr("list imports", fmt.Errorf("parsing imported_at %q: %w", importedAt, err))
		}
		out = append(out, b)
	}
	return out, storageErr("list imports", rows.Err())
}

func scanTransaction(rows *sql.Rows) (model.StoredTransaction, error) {
	var (
		t                   model.StoredTransaction
		account             string
		dateValue, amount   string
		dateCreation        sql.NullString
		iban, bic, category sql.NullString
	)
	err := rows.Scan(&t.ID, &account, &dateValue, &dateCreation, &t.Description, &t.RecipientApplicant,
		&iban, &bic, &amount, &t.ImportHash, &category, &t.Checked, &t.BatchID)
	if err != nil {
		return t, err
	}
	t.AccountID = model.AccountID(account)
	if t.DateValue, err = time.Parse(timeLayout, dateValue); err != nil {
		return t, fmt.Errorf("parsing date_value %q: %w", dateValue, err)
	}
	if dateCreation.Valid {
		d, err := time.Parse(timeLayout, dateCreation.String)
		if err != nil {
			return t, fmt.Errorf("parsing date_creation %q: %w", dateCreation.String, err)
		}
		t.DateCreation = &d
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if iban.Valid {
		t.IBAN = &iban.String
	}
	if bic.Valid {
		t.BIC = &bic.String
	}
	if category.Valid {
		c := model.CategoryID(category.String)
		t.Category = &c
	}
	return t, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
