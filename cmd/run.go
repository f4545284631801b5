package cmd

import (
	"fmt"

	"github.com/cottand/ksym/rewrite"
	"github.com/spf13/cobra"
)

var RunCmd = &cobra.Command{
	Use:          "run definition.yaml --config <kast>",
	Short:        "Rewrite a configuration until no rule applies",
	RunE:         runRun,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	runOptions          *options
	runBound            *int
	runDeterministicFns *bool
	runCompileOnly      *bool
)

func init() {
	runOptions = addOptions(RunCmd)
	runBound = RunCmd.Flags().IntP("bound", "b", -1, "maximum number of steps, unbounded when negative")
	runDeterministicFns = RunCmd.Flags().Bool("deterministic-functions", false, "check every function rule for agreement")
	runCompileOnly = RunCmd.Flags().Bool("compile-only", false, "keep branches the solver cannot refute")
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := runOptions.open(args[0])
	if err != nil {
		return err
	}
	defer s.close()

	config := rewrite.DefaultConfig()
	config.Bound = *runBound
	config.DeterministicFunctions = *runDeterministicFns
	config.CompileOnly = *runCompileOnly
	config.Audit = *runOptions.audit

	rw, err := rewrite.New(s.def, config, rewrite.WithTable(s.table), rewrite.WithMetrics(s.metrics))
	if err != nil {
		return err
	}
	result, steps, err := rw.Rewrite(s.configuration, config.Bound)
	if err != nil {
		return describe(err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n[%d steps]\n", result, steps)
	return err
}
