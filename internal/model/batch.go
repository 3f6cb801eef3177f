package model

import "time"

// ImportBatch is one import run for one account, handed to storage as a
// single atomic unit.
type ImportBatch struct {
	ID           string
	AccountID    AccountID
	Format       string
	Version      string
	ImportedAt   time.Time
	TotalRows    int
	Inserted     int // set when read back; len(Transactions) on insert
	Duplicates   int
	Errors       int
	Transactions []CanonicalTransaction
}
