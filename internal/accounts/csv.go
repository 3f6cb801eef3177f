package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

const (
	numFields        = 6
	colID            = 0
	colName          = 1
	colIBAN          = 2
	colFormat        = 3
	colFormatVersion = 4
	colImportDir     = 5
)

var header = []string{"account_id", "name", "iban", "format", "format_version", "import_dir"}

// ReadAccounts reads accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	seen := make(map[model.AccountID]bool)
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if seen[acct.ID] {
			return nil, fmt.Errorf("row %d: duplicate account_id %q", i+2, acct.ID)
		}
		seen[acct.ID] = true
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = string(acct.ID)
	row[colName] = acct.Name
	row[colIBAN] = acct.IBAN
	row[colFormat] = acct.Format
	row[colFormatVersion] = acct.FormatVersion
	row[colImportDir] = acct.ImportDir
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id := strings.TrimSpace(record[colID])
	if id == "" {
		return model.Account{}, fmt.Errorf("account_id is required")
	}
	format := strings.TrimSpace(record[colFormat])
	if format == "" {
		return model.Account{}, fmt.Errorf("account %q: format is required", id)
	}

	return model.Account{
		ID:            model.AccountID(id),
		Name:          record[colName],
		IBAN:          strings.TrimSpace(record[colIBAN]),
		Format:        format,
		FormatVersion: strings.TrimSpace(record[colFormatVersion]),
		ImportDir:     strings.TrimSpace(record[colImportDir]),
	}, nil
}
