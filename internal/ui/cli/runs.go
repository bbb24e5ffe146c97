package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rangefinder/internal/core/ports"
	"rangefinder/internal/data/rangestore"
)

func newRunsCommand(global *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect scan runs persisted in the range store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(global, func(s *rangestore.Store) error {
				runs, err := s.LoadRuns(limit)
				if err != nil {
					return err
				}
				return writeRuns(cmd.OutOrStdout(), runs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list, newest first (0 for all)")
	cmd.AddCommand(newRunsShowCommand(global), newRunsFindCommand(global))
	return cmd
}

func newRunsShowCommand(global *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <run-id> <path>",
		Short: "Print the stored ranges of one file in a run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			return withStore(global, func(s *rangestore.Store) error {
				rec, err := s.LoadFile(args[0], args[1])
				if err != nil {
					return err
				}
				res := ports.FileResult{Path: rec.Path, Language: rec.Language, Ranges: rec.Ranges}
				if rec.ErrorCode != "" {
					res.Err = fmt.Errorf("%s: %s", rec.ErrorCode, rec.ErrorMessage)
				}
				return writeFiles(cmd.OutOrStdout(), format, []ports.FileResult{res})
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", formatJSON, "Output format: json, yaml or tsv")
	return cmd
}

func newRunsFindCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <name>",
		Short: "Find stored ranges by symbol name across runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(global, func(s *rangestore.Store) error {
				found, err := s.FindByName(args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "RUN\tPATH\tCAPABILITY\tKIND\tLINES")
				for _, r := range found {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d-%d\n",
						r.RunID, r.Path, r.Capability, r.Kind, r.Block.Start.Line, r.Block.End.Line)
				}
				return w.Flush()
			})
		},
	}
}

// withStore opens the configured range store for the duration of fn.
func withStore(global *globalOptions, fn func(*rangestore.Store) error) error {
	cfg, paths, err := loadPaths(global)
	if err != nil {
		return err
	}
	if _, err := os.Stat(paths.StorePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no range store at %s; run 'rangefinder scan --store' first", paths.StorePath)
		}
		return err
	}
	s, err := rangestore.Open(paths.StorePath, cfg.Store.BusyTimeout)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func writeRuns(out io.Writer, runs []rangestore.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tFILES\tSKIPPED\tFAILED\tRANGES\tCAPABILITIES")
	for _, r := range runs {
		duration := "running"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), duration,
			r.Stats.FilesScanned, r.Stats.FilesSkipped, r.Stats.FilesFailed, r.Stats.RangeCount,
			strings.Join(r.Capabilities, ","))
	}
	return w.Flush()
}
