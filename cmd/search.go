package cmd

import (
	"fmt"

	"github.com/cottand/ksym/rewrite"
	"github.com/cottand/ksym/term"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var SearchCmd = &cobra.Command{
	Use:          "search definition.yaml --config <kast>",
	Short:        "Explore every rewrite of a configuration",
	Long:         "Explore every rewrite of a configuration breadth first. Without a pattern, prints the final states; with one, prints the states that match it.",
	RunE:         runSearch,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	searchOptions     *options
	searchDepth       *int
	searchPattern     *string
	searchParallelism *int
)

func init() {
	searchOptions = addOptions(SearchCmd)
	searchDepth = SearchCmd.Flags().IntP("depth", "d", -1, "maximum search depth, unbounded when negative")
	searchPattern = SearchCmd.Flags().StringP("pattern", "p", "", "KAST pattern the reported states must match")
	searchParallelism = SearchCmd.Flags().Int("parallelism", rewrite.DefaultConfig().Parallelism, "branches explored concurrently")
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := searchOptions.open(args[0])
	if err != nil {
		return err
	}
	defer s.close()

	config := rewrite.DefaultConfig()
	config.Policy = rewrite.AllMatches
	config.Depth = *searchDepth
	config.Parallelism = *searchParallelism
	config.Audit = *searchOptions.audit

	var pattern term.Term
	if *searchPattern != "" {
		if pattern, err = s.def.ParseTerm(*searchPattern); err != nil {
			return describe(errors.Wrap(err, "could not parse pattern"))
		}
	}

	rw, err := rewrite.New(s.def, config, rewrite.WithTable(s.table), rewrite.WithMetrics(s.metrics))
	if err != nil {
		return err
	}
	states, err := rw.Search(cmd.Context(), s.configuration, config.Depth, pattern)
	if err != nil {
		return describe(err)
	}
	out := make([]fmt.Stringer, len(states))
	for i, state := range states {
		out[i] = state
	}
	printTerms(cmd, out)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "[%d solutions]\n", len(states))
	return err
}
