package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"rangefinder/internal/core/config"
	"rangefinder/internal/core/errors"
	"rangefinder/internal/core/ports"
)

type extractOptions struct {
	language     string
	capabilities []string
	format       string
}

func newExtractCommand(global *globalOptions) *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract <file|->",
		Short: "Extract ranges from one source file",
		Long:  "Parse one file (or stdin with '-') and print the ranges of the requested capabilities. The language is taken from --lang or the file extension.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), global, opts, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.language, "lang", "", "Language id (required when reading stdin)")
	cmd.Flags().StringSliceVar(&opts.capabilities, "capability", []string{"method"}, "Capabilities to extract (method, class, hoverable, structure, methodIO)")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "Output format: json, yaml or tsv")
	return cmd
}

func runExtract(ctx context.Context, global *globalOptions, opts *extractOptions, target string, stdin io.Reader, stdout io.Writer) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a, _, err := newApp(global, func(cfg *config.Config) { cfg.Store.Enabled = false })
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	language := opts.language
	if language == "" {
		if target == "-" {
			return fmt.Errorf("--lang is required when reading from stdin")
		}
		id, ok := a.Registry.LanguageForPath(target)
		if !ok {
			return errors.New(errors.CodeUnsupportedLanguage, fmt.Sprintf("cannot infer language for %s; pass --lang", target))
		}
		language = id
	}

	capabilities, err := a.ParseCapabilities(opts.capabilities)
	if err != nil {
		return err
	}

	var source []byte
	if target == "-" {
		source, err = io.ReadAll(stdin)
	} else {
		source, err = os.ReadFile(target)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", target, err)
	}

	records, err := a.ExtractSource(ctx, source, language, capabilities)
	if err != nil {
		return err
	}
	return writeFiles(stdout, opts.format, []ports.FileResult{{Path: target, Language: language, Ranges: records}})
}
