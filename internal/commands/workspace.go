package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/config"
	"github.com/cleared-dev/tally/internal/format"
	"github.com/cleared-dev/tally/internal/rules"
	"github.com/cleared-dev/tally/internal/store"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

// workspace is everything a command needs from the project directory.
type workspace struct {
	cfg     *config.Config
	logger  *log.Logger
	formats *format.Registry
}

func openWorkspace(cmd *cobra.Command, opts *globalOptions) (*workspace, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadOptional(config.FileName)
	}
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	formats := format.DefaultRegistry()
	path := cfg.Path(cfg.Formats.Path)
	f, err := format.LoadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("no formats file, using built-in formats", "path", path)
	case err != nil:
		return nil, err
	default:
		n, err := formats.RegisterAll(f)
		if err != nil {
			logger.Warn("skipping broken formats", "path", path, "err", err)
		}
		logger.Debug("loaded formats", "path", path, "count", n)
	}

	return &workspace{cfg: cfg, logger: logger, formats: formats}, nil
}

func (w *workspace) openStore() (*store.Store, error) {
	return store.Open(w.cfg.Path(w.cfg.Database.Path))
}

func (w *workspace) accounts() (*accounts.Service, error) {
	svc, err := accounts.Load(w.cfg.Path(w.cfg.Accounts.Path))
	if errors.Is(err, os.ErrNotExist) {
		return accounts.NewService(nil), nil
	}
	return svc, err
}

// rules loads the rules file. A missing file means no rules.
func (w *workspace) rules() ([]rules.Rule, []rules.BrokenRule, error) {
	path := w.cfg.Path(w.cfg.Rules.Path)
	ruleSet, broken, err := rules.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("no rules file", "path", path)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	for _, b := range broken {
		w.logger.Warn("skipping broken rule", "rule_id", b.ID, "err", b.Err)
	}
	return ruleSet, broken, nil
}

func findRule(ruleSet []rules.Rule, id int64) (rules.Rule, error) {
	for _, r := range ruleSet {
		if r.ID == id {
			return r, nil
		}
	}
	return rules.Rule{}, fmt.Errorf("rule %d not found", id)
}
