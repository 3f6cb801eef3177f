package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/runlog"
)

type importOptions struct {
	format  string
	version string
	all     bool
}

func newImportCommand(g *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <account> [file]",
		Short: "Import a bank statement CSV",
		Long: "Import a statement into <account>. Without a file, every CSV in the\n" +
			"account's import directory is imported and moved to processed/.",
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			if opts.all {
				return runImportAll(cmd.Context(), cmd.OutOrStdout(), ws)
			}
			file := ""
			if len(args) > 1 {
				file = args[1]
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), ws, model.AccountID(args[0]), file, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "", "format name (default: the account's format)")
	cmd.Flags().StringVar(&opts.version, "version", "", "format version (default: the account's or the format's default)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "import every account from its import directory")
	cmd.MarkFlagsMutuallyExclusive("all", "format")
	cmd.MarkFlagsMutuallyExclusive("all", "version")

	return cmd
}

// accountImport imports statements for one account.
type accountImport struct {
	ws       *workspace
	pipeline *importer.Pipeline
	account  model.Account
	format   string
	version  string
}

func (ai *accountImport) file(ctx context.Context, path string) (*importer.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}
	return ai.pipeline.Run(ctx, ai.account.ID, ai.format, ai.version, data)
}

// dir imports every pending file in the account's import directory. Files
// that fail fatally stay in place; the others move to processed/.
func (ai *accountImport) dir(ctx context.Context) ([]*importer.Report, error) {
	dir := accounts.ImportDir(ai.ws.cfg.Root, ai.ws.cfg.Import.Dir, ai.account)
	files, err := importer.Scan(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		ai.ws.logger.Info("nothing to import", "account", ai.account.ID, "dir", dir)
	}

	var (
		reports []*importer.Report
		errs    []error
	)
	for _, f := range files {
		rep, err := ai.file(ctx, f.Path)
		if err != nil {
			ai.ws.logger.Error("import failed", "account", ai.account.ID, "file", f.Name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		reports = append(reports, rep)
		if err := importer.MarkProcessed(dir, f.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

func (w *workspace) importerFor(p *importer.Pipeline, acct model.Account, opts importOptions) *accountImport {
	ai := &accountImport{ws: w, pipeline: p, account: acct, format: acct.Format, version: acct.FormatVersion}
	if opts.format != "" {
		ai.format, ai.version = opts.format, ""
	}
	if opts.version != "" {
		ai.version = opts.version
	}
	return ai
}

func runImport(ctx context.Context, out io.Writer, ws *workspace, id model.AccountID, file string, opts importOptions) error {
	svc, err := ws.accounts()
	if err != nil {
		return err
	}
	acct, ok := svc.Get(id)
	if !ok {
		if opts.format == "" {
			return fmt.Errorf("unknown account %q: add it to %s or pass --format", id, ws.cfg.Accounts.Path)
		}
		acct = model.Account{ID: id}
	}

	st, err := ws.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ai := ws.importerFor(importer.NewPipeline(ws.formats, st, ws.logger), acct, opts)

	var (
		reports []*importer.Report
		runErr  error
	)
	if file != "" {
		var rep *importer.Report
		rep, runErr = ai.file(ctx, file)
		if rep != nil {
			reports = append(reports, rep)
		}
	} else {
		reports, runErr = ai.dir(ctx)
	}

	printReports(out, reports)
	if err := logImports(ws, reports); err != nil {
		return err
	}
	return runErr
}

func runImportAll(ctx context.Context, out io.Writer, ws *workspace) error {
	svc, err := ws.accounts()
	if err != nil {
		return err
	}
	st, err := ws.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	pipeline := importer.NewPipeline(ws.formats, st, ws.logger)
	accts := svc.All()
	results := make([][]*importer.Report, len(accts))

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, a := range accts {
		g.Go(func() error {
			var err error
			results[i], err = ws.importerFor(pipeline, a, importOptions{}).dir(gctx)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("account %s: %w", a.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var all []*importer.Report
	for _, r := range results {
		all = append(all, r...)
	}
	printReports(out, all)
	if err := logImports(ws, all); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func printReports(out io.Writer, reports []*importer.Report) {
	for _, rep := range reports {
		fmt.Fprintln(out, rep.Summary())
		for _, e := range rep.RowErrors {
			fmt.Fprintf(out, "  %s\n", e.Error())
		}
		for _, w := range rep.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}
}

func logImports(ws *workspace, reports []*importer.Report) error {
	entries := make([]runlog.Entry, 0, len(reports))
	for _, rep := range reports {
		entries = append(entries, runlog.Entry{
			Timestamp: time.Now(),
			Command:   "import",
			AccountID: string(rep.AccountID),
			BatchID:   rep.BatchID,
			Summary:   rep.Summary(),
		})
	}
	return runlog.Append(ws.cfg.Root, entries...)
}
