package app

import (
	"context"
	"log/slog"
	"reflect"

	"rangefinder/internal/core/config"
	"rangefinder/internal/core/ports"
	"rangefinder/internal/core/watcher"
	"rangefinder/internal/shared/util"
)

// StartWatcher watches the configured roots and re-extracts changed files.
// onUpdate, when set, receives every completed incremental scan.
func (a *App) StartWatcher(ctx context.Context, onUpdate func(ports.ScanResult)) error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Scan.ExcludeDirs,
		a.Config.Scan.ExcludeFiles,
		func(paths []string) { a.HandleChanges(ctx, paths, onUpdate) },
	)
	if err != nil {
		return err
	}
	w.SetExtensions(a.Registry.Extensions())
	a.activeWatcher = w
	return w.Watch(a.Paths.Roots)
}

// HandleChanges rebuilds every changed file from scratch.
func (a *App) HandleChanges(ctx context.Context, paths []string, onUpdate func(ports.ScanResult)) {
	if ctx.Err() != nil {
		return
	}
	slog.Info("files changed", "count", len(paths))
	res, err := a.ScanFiles(ctx, paths)
	if err != nil {
		slog.Warn("incremental scan failed", "error", err)
		return
	}
	for _, f := range res.Files {
		if f.Err != nil {
			continue
		}
		slog.Debug("file re-extracted", "path", f.Path, "ranges", len(f.Ranges))
	}
	if onUpdate != nil {
		onUpdate(res)
	}
}

// ApplyConfig adopts the reloadable parts of cfg: scan excludes, workers,
// rate, capabilities and watch debounce. Language, limit, path and store
// changes need a restart and are only reported.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	old := a.Config
	if !reflect.DeepEqual(old.Languages, cfg.Languages) ||
		old.Limits != cfg.Limits ||
		old.GrammarsPath != cfg.GrammarsPath ||
		old.QueriesPath != cfg.QueriesPath ||
		old.Store != cfg.Store {
		slog.Warn("config change requires restart to take effect", "sections", "languages, limits, paths, store")
	}

	next := *old
	next.Scan.ExcludeDirs = cfg.Scan.ExcludeDirs
	next.Scan.ExcludeFiles = cfg.Scan.ExcludeFiles
	next.Scan.Workers = cfg.Scan.Workers
	next.Scan.FilesPerSecond = cfg.Scan.FilesPerSecond
	next.Scan.Capabilities = cfg.Scan.Capabilities
	next.Watch = cfg.Watch
	a.Config = &next

	a.limiter = util.NewScanLimiter(cfg.Scan.FilesPerSecond)

	if a.activeWatcher != nil {
		a.activeWatcher.SetDebounce(cfg.Watch.Debounce)
		if err := a.activeWatcher.SetExcludes(cfg.Scan.ExcludeDirs, cfg.Scan.ExcludeFiles); err != nil {
			slog.Warn("failed to apply watcher excludes", "error", err)
		}
	}
	slog.Info("config reloaded", "capabilities", cfg.Scan.Capabilities, "workers", cfg.Scan.Workers)
}
