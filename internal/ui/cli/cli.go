// Package cli implements the rangefinder command line.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const versionString = "0.3.0"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
}

// Execute runs the command line with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "rangefinder",
		Short:         "rangefinder extracts method and class ranges from source files",
		Long:          "Query-driven syntax extraction: parse source under strict size and time limits and report identifier/block ranges per language.",
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(stderr, opts.verbose)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: rangefinder.toml in the project root)")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	root.AddCommand(
		newExtractCommand(opts),
		newScanCommand(opts),
		newLanguagesCommand(opts),
		newGrammarsCommand(opts),
		newRunsCommand(opts),
	)
	return root
}
