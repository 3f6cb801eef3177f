package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/tally/internal/format"
	"github.com/cleared-dev/tally/internal/model"
)

// Reason classifies a rejected row.
type Reason string

const (
	InvalidAmount         Reason = "InvalidAmount"
	InvalidDate           Reason = "InvalidDate"
	MissingMandatoryField Reason = "MissingMandatoryField"
	MalformedRow          Reason = "MalformedRow"
)

// RowError rejects a single row. The rest of the file is still imported.
type RowError struct {
	Row    int // 1-based, counted over data rows
	Reason Reason
	Field  format.CanonicalField
	Detail string
}

func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s (%s): %s", e.Row, e.Reason, e.Field, e.Detail)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Reason, e.Detail)
}

// RowWarning notes a value that was dropped without rejecting the row.
type RowWarning struct {
	Row    int
	Field  format.CanonicalField
	Detail string
}

func (w RowWarning) String() string {
	return fmt.Sprintf("row %d: %s: %s", w.Row, w.Field, w.Detail)
}

// ParseRow extracts and coerces one row. A non-nil error is always a
// *RowError.
func ParseRow(cfg *format.FormatConfig, row format.Row, account model.AccountID, rowNum int) (model.CanonicalTransaction, []RowWarning, error) {
	raw := format.Extract(cfg, row)

	for _, field := range format.MandatoryFields {
		if strings.TrimSpace(raw[field]) == "" {
			return model.CanonicalTransaction{}, nil, &RowError{Row: rowNum, Reason: MissingMandatoryField, Field: field, Detail: "value is empty"}
		}
	}

	amount, err := format.ParseAmount(raw[format.FieldAmount], cfg.DecimalSeparator)
	if err != nil {
		return model.CanonicalTransaction{}, nil, &RowError{Row: rowNum, Reason: InvalidAmount, Field: format.FieldAmount, Detail: err.Error()}
	}

	dateValue, err := format.ParseDate(raw[format.FieldDateValue], cfg.DateFormat)
	if err != nil {
		return model.CanonicalTransaction{}, nil, &RowError{Row: rowNum, Reason: InvalidDate, Field: format.FieldDateValue, Detail: err.Error()}
	}

	var warnings []RowWarning
	var dateCreation *time.Time
	if s := raw[format.FieldDateCreation]; strings.TrimSpace(s) != "" {
		t, err := format.ParseDate(s, cfg.DateFormat)
		if err != nil {
			warnings = append(warnings, RowWarning{Row: rowNum, Field: format.FieldDateCreation, Detail: err.Error()})
		} else {
			dateCreation = &t
		}
	}

	txn := model.CanonicalTransaction{
		AccountID:          account,
		DateValue:          dateValue,
		DateCreation:       dateCreation,
		Description:        raw[format.FieldDescription],
		RecipientApplicant: raw[format.FieldRecipientApplicant],
		IBAN:               optional(raw[format.FieldIBAN]),
		BIC:                optional(raw[format.FieldBIC]),
		Amount:             amount,
	}
	txn.ImportHash = ImportHash(txn)
	return txn, warnings, nil
}

// ImportHash fingerprints a transaction for dedup. It is a pure function of
// account, value date, amount, description and counterpart, with no case or
// whitespace normalization. Fields are NUL-separated so text cannot shift
// from one field into the next.
func ImportHash(t model.CanonicalTransaction) string {
	h := sha256.New()
	for _, field := range []string{
		string(t.AccountID),
		t.DateValue.UTC().Format(time.RFC3339),
		t.Amount.String(),
		t.Description,
		t.RecipientApplicant,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
