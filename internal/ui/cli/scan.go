package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	coreapp "rangefinder/internal/core/app"
	"rangefinder/internal/core/config"
	"rangefinder/internal/core/ports"
)

type scanOptions struct {
	capabilities []string
	format       string
	watch        bool
	store        bool
	noStore      bool
}

func newScanCommand(global *globalOptions) *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Extract ranges from every supported file under the given roots",
		Long:  "Walk the roots (default: scan.roots from config), extract the requested capabilities from each supported file and print the results. With --watch, changed files are re-extracted until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), global, opts, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&opts.capabilities, "capability", nil, "Capabilities to extract (default: scan.capabilities from config)")
	cmd.Flags().StringVar(&opts.format, "format", formatJSON, "Output format: json, yaml or tsv")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep running and re-extract changed files")
	cmd.Flags().BoolVar(&opts.store, "store", false, "Persist runs to the range store even if disabled in config")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "Do not persist runs")
	cmd.MarkFlagsMutuallyExclusive("store", "no-store")
	return cmd
}

func runScan(ctx context.Context, global *globalOptions, opts *scanOptions, paths []string, stdout io.Writer) error {
	if err := validateFormat(opts.format); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a, configPath, err := newApp(global, func(cfg *config.Config) {
		if opts.store {
			cfg.Store.Enabled = true
		}
		if opts.noStore {
			cfg.Store.Enabled = false
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
	}()

	if opts.watch {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	stopObservability, err := startObservability(ctx, a)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopObservability(shutdownCtx)
	}()

	res, err := a.RunScan(ctx, ports.ScanRequest{Paths: paths, Capabilities: opts.capabilities})
	if err != nil {
		return err
	}
	if err := writeFiles(stdout, opts.format, res.Files); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	return watchLoop(ctx, a, configPath, opts.format, stdout)
}

// watchLoop streams incremental results until ctx is cancelled. Config file
// edits are applied live.
func watchLoop(ctx context.Context, a *coreapp.App, configPath, format string, stdout io.Writer) error {
	updates := make(chan ports.ScanResult, 16)
	err := a.StartWatcher(ctx, func(res ports.ScanResult) {
		select {
		case updates <- res:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}

	if configPath != "" {
		cw := config.NewWatcher(configPath, a.ApplyConfig)
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config hot-reload unavailable", "path", configPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	slog.Info("watching for changes", "roots", a.Paths.Roots)
	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped")
			return nil
		case res := <-updates:
			if err := writeFiles(stdout, format, res.Files); err != nil {
				return err
			}
		}
	}
}
