package model

// AccountID identifies a bank account ("giro", "visa-gold").
type AccountID string

// Account represents a row in accounts.csv.
type Account struct {
	ID            AccountID
	Name          string
	IBAN          string
	Format        string // default import format
	FormatVersion string // empty = the format's default version
	ImportDir     string // relative to the workspace root; empty = import/<id>
}
