package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryID names a budget category ("groceries", "rent", ...).
type CategoryID string

// CanonicalTransaction is one bank movement after format-driven extraction
// and type coercion.
type CanonicalTransaction struct {
	AccountID          AccountID
	DateValue          time.Time
	DateCreation       *time.Time // nil when the format omits it or it did not parse
	Description        string
	RecipientApplicant string
	IBAN               *string
	BIC                *string
	Amount             decimal.Decimal // negative = expense, positive = income
	ImportHash         string
}

// StoredTransaction is a CanonicalTransaction as persisted, with its row id
// and categorization state.
type StoredTransaction struct {
	ID int64
	CanonicalTransaction
	Category *CategoryID // nil = unclassified
	Checked  bool        // a human reviewed or overrode the category
	BatchID  string
}

// Classifiable is the projection of a transaction the rule engine sees.
type Classifiable struct {
	AccountID          AccountID
	Description        string
	RecipientApplicant string
	IBAN               *string
	Amount             decimal.Decimal
}

// Classifiable projects a transaction for rule evaluation.
func (t CanonicalTransaction) Classifiable() Classifiable {
	return Classifiable{
		AccountID:          t.AccountID,
		Description:        t.Description,
		RecipientApplicant: t.RecipientApplicant,
		IBAN:               t.IBAN,
		Amount:             t.Amount,
	}
}
