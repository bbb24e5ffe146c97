// Package app wires configuration, the language registry, the parse guard
// and the range store into scan and watch workflows.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rangefinder/internal/core/config"
	"rangefinder/internal/core/ports"
	"rangefinder/internal/core/watcher"
	"rangefinder/internal/data/rangestore"
	"rangefinder/internal/engine/grammar"
	"rangefinder/internal/engine/parser"
	"rangefinder/internal/engine/registry"
	"rangefinder/internal/engine/syntax"
	"rangefinder/internal/engine/treesitter"
	"rangefinder/internal/shared/util"
)

type App struct {
	Config   *config.Config
	Paths    config.ResolvedPaths
	Registry *registry.Registry
	Builder  *parser.Builder

	loader  *grammar.Loader
	store   ports.RangeStore
	limiter *util.Limiter

	writeQueue   ports.WriteQueuePort
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	activeWatcher *watcher.Watcher

	runMu    sync.Mutex
	scanMu   sync.RWMutex
	lastScan ports.ScanResult
	lastAt   time.Time
}

var _ ports.ScanService = (*App)(nil)

// New builds an App from cfg. Relative paths in cfg resolve against cwd.
func New(cfg *config.Config, cwd string) (*App, error) {
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Build(cfg.LanguageOverrides(), paths.QueriesPath)
	if err != nil {
		return nil, fmt.Errorf("build language registry: %w", err)
	}

	verify := cfg.GrammarVerification.IsEnabled() && hasDynamicGrammars(reg)
	loader, err := grammar.NewLoader(paths.GrammarsPath, verify)
	if err != nil {
		reg.Close()
		return nil, err
	}

	builder := parser.NewBuilder(reg, treesitter.New(loader), parser.WithLimits(parser.Limits{
		MaxSourceChars: cfg.Limits.MaxSourceChars,
		ParseTimeout:   cfg.Limits.ParseTimeout,
	}), parser.WithIdleParsers(cfg.Scan.Workers))

	a := &App{
		Config:   cfg,
		Paths:    paths,
		Registry: reg,
		Builder:  builder,
		loader:   loader,
		limiter:  util.NewScanLimiter(cfg.Scan.FilesPerSecond),
	}

	if cfg.Store.Enabled {
		store, err := rangestore.Open(paths.StorePath, cfg.Store.BusyTimeout)
		if err != nil {
			a.closeEngine()
			return nil, err
		}
		a.store = store
		if err := a.initWriteQueue(); err != nil {
			_ = store.Close()
			a.closeEngine()
			return nil, err
		}
	}

	slog.Debug("app initialized",
		"languages", reg.Languages(),
		"grammars_path", paths.GrammarsPath,
		"verify_grammars", verify,
		"store", cfg.Store.Enabled,
	)
	return a, nil
}

// hasDynamicGrammars reports whether any registered language loads its
// grammar from a shared library.
func hasDynamicGrammars(reg *registry.Registry) bool {
	for _, id := range reg.Languages() {
		b, err := reg.Resolve(id)
		if err == nil && b.Grammar.Dynamic() {
			return true
		}
	}
	return false
}

// DynamicGrammars returns the grammar sources of shared-library languages.
func (a *App) DynamicGrammars() map[string]syntax.GrammarSource {
	out := make(map[string]syntax.GrammarSource)
	for _, id := range a.Registry.Languages() {
		b, err := a.Registry.Resolve(id)
		if err == nil && b.Grammar.Dynamic() {
			out[id] = b.Grammar
		}
	}
	return out
}

// LastScan returns the most recent scan result and when it finished.
func (a *App) LastScan() (ports.ScanResult, time.Time) {
	a.scanMu.RLock()
	defer a.scanMu.RUnlock()
	return a.lastScan, a.lastAt
}

func (a *App) recordScan(res ports.ScanResult) {
	a.scanMu.Lock()
	a.lastScan = res
	a.lastAt = time.Now().UTC()
	a.scanMu.Unlock()
}

func (a *App) closeEngine() {
	if a.Builder != nil {
		a.Builder.Close()
	}
	if a.Registry != nil {
		a.Registry.Close()
	}
	if a.loader != nil {
		a.loader.Close()
	}
}

// Close stops the watcher, drains pending store writes and releases the
// engine. A ctx without deadline gets a 10s drain budget.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			slog.Warn("failed to close watcher", "error", err)
		}
		a.activeWatcher = nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}
	if err := a.stopWriteWorker(ctx); err != nil {
		return err
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			return err
		}
		a.store = nil
	}
	a.closeEngine()
	return nil
}
