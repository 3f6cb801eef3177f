// Package export writes stored transactions as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// Header is the CSV header of an export.
const Header = "id,account_id,date_value,date_creation,description,recipient_applicant,iban,bic,amount,category,checked,batch_id,import_hash"

const (
	numFields     = 13
	dateFormat    = "2006-01-02"
	colID         = 0
	colAcctID     = 1
	colDateValue  = 2
	colDateCreate = 3
	colDesc       = 4
	colRecipient  = 5
	colIBAN       = 6
	colBIC        = 7
	colAmount     = 8
	colCategory   = 9
	colChecked    = 10
	colBatchID    = 11
	colHash       = 12
)

// WriteTransactions writes txns, header first.
func WriteTransactions(w io.Writer, txns []model.StoredTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTransactions reads an export back.
func ReadTransactions(r io.Reader) ([]model.StoredTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading export CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var txns []model.StoredTransaction
	for i, rec := range records[1:] {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// MarshalTransaction converts a StoredTransaction to a CSV row.
func MarshalTransaction(t model.StoredTransaction) []string {
	row := make([]string, numFields)
	row[colID] = strconv.FormatInt(t.ID, 10)
	row[colAcctID] = string(t.AccountID)
	row[colDateValue] = t.DateValue.Format(dateFormat)
	if t.DateCreation != nil {
		row[colDateCreate] = t.DateCreation.Format(dateFormat)
	}
	row[colDesc] = t.Description
	row[colRecipient] = t.RecipientApplicant
	if t.IBAN != nil {
		row[colIBAN] = *t.IBAN
	}
	if t.BIC != nil {
		row[colBIC] = *t.BIC
	}
	row[colAmount] = t.Amount.StringFixed(2)
	if t.Category != nil {
		row[colCategory] = string(*t.Category)
	}
	row[colChecked] = strconv.FormatBool(t.Checked)
	row[colBatchID] = t.BatchID
	row[colHash] = t.ImportHash
	return row
}

// UnmarshalTransaction converts a CSV row to a StoredTransaction.
func UnmarshalTransaction(record []string) (model.StoredTransaction, error) {
	if len(record) != numFields {
		return model.StoredTransaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id, err := strconv.ParseInt(record[colID], 10, 64)
	if err != nil {
		return model.StoredTransaction{}, fmt.Errorf("parsing id %q: %w", record[colID], err)
	}
	dateValue, err := time.Parse(dateFormat, record[colDateValue])
	if err != nil {
		return model.StoredTransaction{}, fmt.Errorf("parsing date_value %q: %w", record[colDateValue], err)
	}
	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.StoredTransaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}
	checked, err := strconv.ParseBool(record[colChecked])
	if err != nil {
		return model.StoredTransaction{}, fmt.Errorf("parsing checked %q: %w", record[colChecked], err)
	}

	t := model.StoredTransaction{
		ID: id,
		CanonicalTransaction: model.CanonicalTransaction{
			AccountID:          model.AccountID(record[colAcctID]),
			DateValue:          dateValue,
			Description:        record[colDesc],
			RecipientApplicant: record[colRecipient],
			Amount:             amount,
			ImportHash:         record[colHash],
		},
		Checked: checked,
		BatchID: record[colBatchID],
	}
	if s := record[colDateCreate]; s != "" {
		d, err := time.Parse(dateFormat, s)
		if err != nil {
			return model.StoredTransaction{}, fmt.Errorf("parsing date_creation %q: %w", s, err)
		}
		t.DateCreation = &d
	}
	if s := record[colIBAN]; s != "" {
		t.IBAN = &s
	}
	if s := record[colBIC]; s != "" {
		t.BIC = &s
	}
	if s := record[colCategory]; s != "" {
		c := model.CategoryID(s)
		t.Category = &c
	}
	return t, nil
}
