package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/format"
	"github.com/cleared-dev/tally/internal/gitops"
	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/store"
)

func newInitCommand() *cobra.Command {
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tally workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir); err != nil {
				return err
			}
			msg := fmt.Sprintf("Initialized tally workspace at %s", absDir)
			if useGit {
				hash, err := commitWorkspace(cmd.Context(), absDir)
				if err != nil {
					return err
				}
				msg += fmt.Sprintf(" (%s)", hash)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useGit, "git", false, "put the workspace files under git")

	return cmd
}

// commitWorkspace commits the user-authored files; the database and logs
// stay out of version control.
func commitWorkspace(ctx context.Context, dir string) (string, error) {
	repo, err := gitops.Init(ctx, dir, gitops.DefaultIdentity)
	if err != nil {
		return "", err
	}
	cfg := config.Default()
	hash, err := repo.Commit(ctx, "init: tally workspace",
		config.FileName, cfg.Formats.Path, cfg.Rules.Path, cfg.Accounts.Path, ".gitignore")
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	return hash, nil
}

func runInit(dir string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	// Write tally.yaml.
	cfg := config.Default()
	cfg.Root = dir
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the built-in formats as an editable starting point.
	reg := format.DefaultRegistry()
	var file format.File
	for _, name := range reg.Names() {
		f, _ := reg.Get(name)
		file.Formats = append(file.Formats, format.Spec(f))
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("marshaling formats: %w", err)
	}
	if err := os.WriteFile(cfg.Path(cfg.Formats.Path), data, 0o644); err != nil {
		return fmt.Errorf("writing formats: %w", err)
	}

	// Write empty categorization rules.
	if err := os.WriteFile(cfg.Path(cfg.Rules.Path), []byte("rules: []\n"), 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	// Write sample accounts and their import dirs.
	svc := accounts.NewService(accounts.SampleAccounts())
	if err := svc.Save(cfg.Path(cfg.Accounts.Path)); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	for _, a := range svc.All() {
		d := filepath.Join(accounts.ImportDir(dir, cfg.Import.Dir, a), importer.ProcessedDir)
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating import dir: %w", err)
		}
	}

	// Write .gitignore.
	gitignore := cfg.Database.Path + "\nlogs/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Create the database.
	st, err := store.Open(cfg.Path(cfg.Database.Path))
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	return st.Close()
}
