package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rangefinder/internal/core/config"
	"rangefinder/internal/engine/registry"
)

func newLanguagesCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List registered languages with their extensions and capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := newApp(global, func(cfg *config.Config) { cfg.Store.Enabled = false })
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return writeLanguages(cmd.OutOrStdout(), a.Registry)
		},
	}
}

func writeLanguages(out io.Writer, reg *registry.Registry) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LANGUAGE\tGRAMMAR\tEXTENSIONS\tCAPABILITIES\tNAMESPACES")
	for _, id := range reg.Languages() {
		b, err := reg.Resolve(id)
		if err != nil {
			return err
		}
		grammarName := b.Grammar.Name
		if b.Grammar.Dynamic() {
			grammarName += " (dynamic)"
		}
		var caps []string
		for _, c := range registry.Capabilities {
			if !b.Query(c).Empty() {
				caps = append(caps, string(c))
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			id, grammarName,
			strings.Join(b.Extensions, ","),
			strings.Join(caps, ","),
			strings.Join(b.Namespaces.Strings(), ","))
	}
	return w.Flush()
}
