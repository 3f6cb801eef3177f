package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/categorize"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/runlog"
)

func newClassifyCommand(g *globalOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Categorize unclassified transactions using the rules file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			ruleSet, broken, err := ws.rules()
			if err != nil {
				return err
			}
			st, err := ws.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			svc := categorize.NewService(st, ws.logger)
			rep, err := svc.Run(cmd.Context(), ruleSet, broken, categorize.Options{
				DryRun:  dryRun,
				Workers: ws.cfg.Classify.Workers,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, r := range rep.Results {
					fmt.Fprintf(out, "%d -> %s (rule %d)\n", r.TransactionID, r.Category, r.RuleID)
				}
			}
			fmt.Fprintln(out, rep.Summary())
			if dryRun {
				return nil
			}
			return runlog.Append(ws.cfg.Root, runlog.Entry{
				Timestamp: time.Now(),
				Command:   "classify",
				Summary:   rep.Summary(),
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be categorized without writing")

	return cmd
}

func newCategorizeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <transaction-id> <category>",
		Short: "Set a transaction's category by hand",
		Long:  "Set a transaction's category and mark it checked. Later classify runs leave it alone.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			st, err := ws.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetCategory(cmd.Context(), id, model.CategoryID(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %d -> %s\n", id, args[1])
			return nil
		},
	}
}
