package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	coreapp "rangefinder/internal/core/app"
	"rangefinder/internal/core/config"
	"rangefinder/internal/shared/observability"
)

// configureLogging sends logs to w so stdout stays reserved for results.
func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// loadConfig returns the config at explicit, or the project's rangefinder.toml,
// or the defaults when neither exists. Environment overrides apply last.
func loadConfig(explicit, cwd string) (*config.Config, string, error) {
	path, err := config.Find(explicit, cwd)
	if err != nil {
		return nil, "", err
	}

	var cfg *config.Config
	if path == "" {
		slog.Debug("no config file found, using defaults", "cwd", cwd)
		cfg = config.Default()
	} else {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("load config %s: %w", path, err)
		}
	}
	config.ApplyEnvOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadPaths loads configuration and resolves its paths without starting the
// parsing engine.
func loadPaths(opts *globalOptions) (*config.Config, config.ResolvedPaths, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, config.ResolvedPaths{}, fmt.Errorf("detect working directory: %w", err)
	}
	cfg, _, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		return nil, config.ResolvedPaths{}, err
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, config.ResolvedPaths{}, err
	}
	return cfg, paths, nil
}

// newApp loads configuration and wires an App rooted at the working directory.
func newApp(opts *globalOptions, adjust func(*config.Config)) (*coreapp.App, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("detect working directory: %w", err)
	}
	cfg, path, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		return nil, "", err
	}
	if adjust != nil {
		adjust(cfg)
	}
	a, err := coreapp.New(cfg, cwd)
	if err != nil {
		return nil, "", fmt.Errorf("initialize app: %w", err)
	}
	return a, path, nil
}

// startObservability starts tracing and the metrics server when configured.
// The returned function stops both.
func startObservability(ctx context.Context, a *coreapp.App) (func(context.Context), error) {
	shutdownTracing, err := observability.SetupTracing(ctx, a.Config.Observability.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	var server *observability.Server
	if addr := a.Config.Observability.MetricsAddr; addr != "" {
		server = observability.NewServer(addr, coreapp.NewHealthService(a))
		if err := server.Start(ctx); err != nil {
			_ = shutdownTracing(ctx)
			return nil, err
		}
	}

	return func(ctx context.Context) {
		if server != nil {
			if err := server.Stop(ctx); err != nil {
				slog.Warn("failed to stop observability server", "error", err)
			}
		}
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}, nil
}
