package main

import (
	"os"

	"github.com/cottand/ksym/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "ksym [subcommand]",
	Short:        "ksym\n symbolic rewriting over K-style definitions",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.RunCmd)
	rootCmd.AddCommand(cmd.SearchCmd)
	rootCmd.AddCommand(cmd.IndexCmd)
}
