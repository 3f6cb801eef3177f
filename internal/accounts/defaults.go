package accounts

import "github.com/cleared-dev/tally/internal/model"

// SampleAccounts returns the accounts written by "tally init", one per
// built-in format.
func SampleAccounts() []model.Account {
	return []model.Account{
		{ID: "chase-checking", Name: "Chase Checking", Format: "chase"},
		{ID: "giro", Name: "DKB Girokonto", Format: "dkb", FormatVersion: "2023"},
	}
}
