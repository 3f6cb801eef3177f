package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
)

func newRulesCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate, try out and merge categorization rules",
	}
	cmd.AddCommand(
		newRulesValidateCommand(g),
		newRulesTestCommand(g),
		newRulesMergeCommand(g),
	)
	return cmd
}

func newRulesValidateCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Compile every rule and report broken ones",
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
			return runRulesValidate(cmd.OutOrStdout(), ws, ruleSet, broken)
		},
	}
}

func runRulesValidate(out io.Writer, ws *workspace, ruleSet []rules.Rule, broken []rules.BrokenRule) error {
	engine := rules.NewEngine(ruleSet, ws.logger)
	broken = append(broken, engine.Broken()...)
	for _, b := range broken {
		fmt.Fprintf(out, "rule %d: %v\n", b.ID, b.Err)
	}
	fmt.Fprintf(out, "%d active rules, %d broken\n", engine.Len(), len(broken))
	if len(broken) > 0 {
		return fmt.Errorf("%d broken rules", len(broken))
	}
	return nil
}

type sampleFlags struct {
	account     string
	description string
	recipient   string
	iban        string
	amount      string
}

func (f sampleFlags) classifiable() (model.Classifiable, error) {
	s := model.Classifiable{
		AccountID:          model.AccountID(f.account),
		Description:        f.description,
		RecipientApplicant: f.recipient,
	}
	if f.iban != "" {
		iban := f.iban
		s.IBAN = &iban
	}
	if f.amount != "" {
		amt, err := decimal.NewFromString(f.amount)
		if err != nil {
			return model.Classifiable{}, fmt.Errorf("invalid --amount %q: %w", f.amount, err)
		}
		s.Amount = amt
	}
	return s, nil
}

func newRulesTestCommand(g *globalOptions) *cobra.Command {
	var (
		sample   sampleFlags
		ruleFile string
	)

	cmd := &cobra.Command{
		Use:   "test [rule-id]",
		Short: "Evaluate rules against a sample transaction",
		Long: "With a rule id, explain how that rule evaluates condition by condition.\n" +
			"With --rule-file, explain a rule that is not in the rules file yet\n" +
			"(\"-\" reads it from stdin). Without either, report which rule the\n" +
			"engine would pick.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sample.classifiable()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if ruleFile != "" {
				if len(args) > 0 {
					return fmt.Errorf("--rule-file cannot be combined with a rule id")
				}
				r, err := readRule(cmd.InOrStdin(), ruleFile)
				if err != nil {
					return err
				}
				return explain(out, r, s)
			}

			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			ruleSet, _, err := ws.rules()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				m, ok := rules.NewEngine(ruleSet, ws.logger).Classify(s)
				if !ok {
					fmt.Fprintln(out, "no rule matched")
					return nil
				}
				fmt.Fprintf(out, "%s (rule %d)\n", m.Category, m.RuleID)
				return nil
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			r, err := findRule(ruleSet, id)
			if err != nil {
				return err
			}
			return explain(out, r, s)
		},
	}

	cmd.Flags().StringVar(&sample.account, "account", "", "account id")
	cmd.Flags().StringVar(&sample.description, "description", "", "transaction description")
	cmd.Flags().StringVar(&sample.recipient, "recipient", "", "recipient or applicant")
	cmd.Flags().StringVar(&sample.iban, "iban", "", "counterparty IBAN")
	cmd.Flags().StringVar(&sample.amount, "amount", "", "amount, negative for expenses")
	cmd.Flags().StringVar(&ruleFile, "rule-file", "", "YAML file holding a single rule to try, - for stdin")

	return cmd
}

// readRule decodes the single rule in path, or in stdin when path is "-".
func readRule(stdin io.Reader, path string) (rules.Rule, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return rules.Rule{}, fmt.Errorf("reading rule: %w", err)
	}
	return rules.DecodeRule(data)
}

func explain(out io.Writer, r rules.Rule, s model.Classifiable) error {
	exp, err := rules.Explain(r, s)
	if err != nil {
		return err
	}
	fmt.Fprint(out, exp.String())
	return nil
}

func newRulesMergeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <rule-id> <rule-id>...",
		Short: "Print the OR-combination of several rules as YAML",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			ruleSet, _, err := ws.rules()
			if err != nil {
				return err
			}

			picked := make([]rules.Rule, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid rule id %q", a)
				}
				r, err := findRule(ruleSet, id)
				if err != nil {
					return err
				}
				picked = append(picked, r)
			}

			merged, err := rules.Merge(picked)
			if err != nil {
				return err
			}
			data, err := rules.Encode(merged)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
