package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tally/internal/format"
)

func newFormatsCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "Inspect the registered bank formats",
	}
	cmd.AddCommand(newFormatsListCommand(g), newFormatsShowCommand(g))
	return cmd
}

func newFormatsListCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List formats and their versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range ws.formats.Names() {
				f, _ := ws.formats.Get(name)
				fmt.Fprintf(out, "%s\t%s (default %s)\n", f.Name, strings.Join(f.VersionNames(), ", "), f.DefaultVersion)
			}
			return nil
		},
	}
}

func newFormatsShowCommand(g *globalOptions) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a format definition as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd, g)
			if err != nil {
				return err
			}
			if _, err := ws.formats.Resolve(args[0], version); err != nil {
				return err
			}
			f, _ := ws.formats.Get(args[0])
			spec := format.Spec(f)
			if version != "" {
				spec.Versions = map[string]format.VersionSpec{version: spec.Versions[version]}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(format.File{Formats: []format.FormatSpec{spec}}); err != nil {
				return fmt.Errorf("encoding format: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "show only this version")

	return cmd
}
