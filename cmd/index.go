package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var IndexCmd = &cobra.Command{
	Use:          "index definition.yaml --config <kast>",
	Short:        "Print the rules the index selects for a configuration",
	RunE:         runIndex,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var indexOptions *options

func init() {
	indexOptions = addOptions(IndexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	s, err := indexOptions.open(args[0])
	if err != nil {
		return err
	}
	defer s.close()

	rules, err := s.table.Rules(s.configuration)
	if err != nil {
		return describe(err)
	}
	for _, r := range rules {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s => %s\n", r.Label, r.LHS, r.RHS); err != nil {
			return err
		}
	}
	return nil
}
