// Package accounts manages the bank accounts statements are imported into.
package accounts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cleared-dev/tally/internal/format"
	"github.com/cleared-dev/tally/internal/model"
)

// DefaultImportRoot holds per-account import dirs when an account sets none.
const DefaultImportRoot = "import"

// Service provides in-memory lookup over the account registry.
type Service struct {
	accounts []model.Account
	byID     map[model.AccountID]model.Account
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account) *Service {
	byID := make(map[model.AccountID]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return &Service{accounts: accounts, byID: byID}
}

// Load reads the accounts file at path.
func Load(path string) (*Service, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	return NewService(accts), nil
}

// All returns all accounts in file order.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Get returns an account by ID.
func (s *Service) Get(id model.AccountID) (model.Account, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(id model.AccountID) bool {
	_, ok := s.byID[id]
	return ok
}

// Add appends an account. IDs must be unique.
func (s *Service) Add(a model.Account) error {
	if a.ID == "" {
		return errors.New("account_id is required")
	}
	if s.Exists(a.ID) {
		return fmt.Errorf("account %q already exists", a.ID)
	}
	s.accounts = append(s.accounts, a)
	s.byID[a.ID] = a
	return nil
}

// ImportDir returns the directory statements for a are read from. Relative
// paths are taken from root; importRoot (default "import") holds one
// subdirectory per account that sets no dir of its own.
func ImportDir(root, importRoot string, a model.Account) string {
	if a.ImportDir == "" {
		if importRoot == "" {
			importRoot = DefaultImportRoot
		}
		return resolve(root, filepath.Join(importRoot, string(a.ID)))
	}
	return resolve(root, a.ImportDir)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// Validate checks that every account's format and version resolve in reg.
func (s *Service) Validate(reg *format.Registry) error {
	var errs []error
	for _, a := range s.accounts {
		if _, err := reg.Resolve(a.Format, a.FormatVersion); err != nil {
			errs = append(errs, fmt.Errorf("account %q: %w", a.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Save writes the registry to path.
func (s *Service) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	return f.Close()
}
