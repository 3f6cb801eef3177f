package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/export"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/runlog"
	"github.com/cleared-dev/tally/internal/store"
)

func newExportCommand(g *globalOptions) *cobra.Command {
	var (
		unclassified bool
		output       string
	)

	cmd := &cobra.Command{
		Use:   "export [account]",
		Short: "Export stored transactions as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			st, err := ws.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			filter := store.Filter{Unclassified: unclassified}
			if len(args) > 0 {
				filter.AccountID = model.AccountID(args[0])
			}
			txns, err := st.ListTransactions(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return export.WriteTransactions(cmd.OutOrStdout(), txns)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating export: %w", err)
			}
			if err := export.WriteTransactions(f, txns); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing export: %w", err)
			}
			ws.logger.Info("exported transactions", "path", output, "count", len(txns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unclassified, "unclassified", false, "only transactions without a category")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var (
		runs    bool
		command string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history [account]",
		Short: "List past imports, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if runs {
				q := runlog.Query{Command: command, Limit: limit}
				if len(args) > 0 {
					q.AccountID = args[0]
				}
				return printRunLog(out, ws.cfg.Root, q)
			}
			if command != "" {
				return fmt.Errorf("--command needs --runs")
			}

			st, err := ws.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var account model.AccountID
			if len(args) > 0 {
				account = model.AccountID(args[0])
			}
			batches, err := st.ListImports(cmd.Context(), account)
			if err != nil {
				return err
			}
			if limit > 0 && len(batches) > limit {
				batches = batches[:limit]
			}
			for _, b := range batches {
				fmt.Fprintf(out, "%s  %s  %s/%s  %d rows, %d inserted, %d duplicates, %d errors  %s\n",
					b.ImportedAt.Local().Format("2006-01-02 15:04"), b.AccountID, b.Format, b.Version,
					b.TotalRows, b.Inserted, b.Duplicates, b.Errors, b.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&runs, "runs", false, "show the run log instead")
	cmd.Flags().StringVar(&command, "command", "", "with --runs, only runs of this command (import, classify)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n entries")

	return cmd
}

func printRunLog(out io.Writer, root string, q runlog.Query) error {
	entries, err := runlog.Find(root, q)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-8s  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.Command, e.Summary)
	}
	return nil
}
