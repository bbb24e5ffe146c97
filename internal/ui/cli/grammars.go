package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rangefinder/internal/core/config"
	"rangefinder/internal/engine/grammar"
	"rangefinder/internal/engine/registry"
	"rangefinder/internal/engine/syntax"
)

func newGrammarsCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grammars",
		Short: "Manage and verify shared-library grammars",
	}
	cmd.AddCommand(
		newGrammarsVerifyCommand(global),
		newGrammarsListCommand(global),
		newGrammarsAddCommand(global),
		newGrammarsRemoveCommand(global),
	)
	return cmd
}

func newGrammarsVerifyCommand(global *globalOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check configured dynamic grammars against the manifest checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, paths, err := loadPaths(global)
			if err != nil {
				return err
			}
			return runGrammarsVerify(cmd.OutOrStdout(), cfg, paths, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Verify every manifest artifact, not only configured languages")
	return cmd
}

func runGrammarsVerify(out io.Writer, cfg *config.Config, paths config.ResolvedPaths, all bool) error {
	if !cfg.GrammarVerification.IsEnabled() {
		fmt.Fprintln(out, "grammar verification is disabled in config")
		return nil
	}

	var issues []grammar.VerificationIssue
	if all {
		m, err := grammar.LoadManifest(filepath.Join(paths.GrammarsPath, grammar.ManifestFile))
		if err != nil {
			return err
		}
		issues, err = grammar.VerifyArtifacts(paths.GrammarsPath, m)
		if err != nil {
			return err
		}
	} else {
		sources, err := dynamicGrammars(cfg, paths)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Fprintln(out, "no dynamic grammars configured")
			return nil
		}
		issues, err = grammar.VerifyLanguages(paths.GrammarsPath, sources)
		if err != nil {
			return err
		}
	}

	if len(issues) == 0 {
		fmt.Fprintln(out, "grammar verification passed")
		return nil
	}
	for _, issue := range issues {
		fmt.Fprintln(out, issue.String())
	}
	return fmt.Errorf("grammar verification failed with %d issue(s)", len(issues))
}

// dynamicGrammars lists the enabled languages whose grammar comes from a
// shared library.
func dynamicGrammars(cfg *config.Config, paths config.ResolvedPaths) (map[string]syntax.GrammarSource, error) {
	defs, err := registry.BuildDefinitions(cfg.LanguageOverrides(), paths.QueriesPath)
	if err != nil {
		return nil, err
	}
	out := make(map[string]syntax.GrammarSource)
	for id, def := range defs {
		if def.Enabled && def.Grammar.Dynamic() {
			out[id] = def.Grammar
		}
	}
	return out, nil
}

func newGrammarsListCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in grammars and installed shared libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, paths, err := loadPaths(global)
			if err != nil {
				return err
			}
			return runGrammarsList(cmd.OutOrStdout(), paths.GrammarsPath)
		},
	}
}

func runGrammarsList(out io.Writer, grammarsPath string) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tKIND\tABI\tSOURCE\tAPPROVED")
	for _, name := range grammar.BuiltinNames() {
		fmt.Fprintf(w, "%s\tbuiltin\t\t\t\n", name)
	}

	m, err := grammar.LoadManifest(filepath.Join(grammarsPath, grammar.ManifestFile))
	switch {
	case err == nil:
		for _, art := range m.Artifacts {
			fmt.Fprintf(w, "%s\tdynamic\t%d\t%s\t%s\n", art.Language, art.ABIVersion, art.Source, art.ApprovedDate)
		}
	case os.IsNotExist(err):
	default:
		return err
	}
	return w.Flush()
}

func newGrammarsAddCommand(global *globalOptions) *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "add <name> <repo_url>",
		Short: "Clone, build and pin a grammar shared library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, paths, err := loadPaths(global)
			if err != nil {
				return err
			}
			name, url := args[0], args[1]
			if symbol == "" {
				symbol = "tree_sitter_" + name
			}

			builder, err := grammar.NewBuilder()
			if err != nil {
				return fmt.Errorf("initialize builder: %w", err)
			}
			defer builder.Cleanup()
			builder.Stdout = cmd.ErrOrStderr()
			builder.Stderr = cmd.ErrOrStderr()

			libPath, nodeTypesPath, err := builder.Build(cmd.Context(), name, url)
			if err != nil {
				return fmt.Errorf("build grammar %s: %w", name, err)
			}
			art, err := grammar.Install(paths.GrammarsPath, name, symbol, url, libPath, nodeTypesPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s (ABI %d) at %s\n", art.Language, art.ABIVersion, filepath.Join(paths.GrammarsPath, art.LibraryPath))
			fmt.Fprintf(cmd.OutOrStdout(), "enable it with [languages.%s] library = %q symbol = %q\n", name, art.LibraryPath, symbol)
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "Exported language constructor (default: tree_sitter_<name>)")
	return cmd
}

func newGrammarsRemoveCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an installed grammar and its manifest entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, paths, err := loadPaths(global)
			if err != nil {
				return err
			}
			if err := grammar.Uninstall(paths.GrammarsPath, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}
