package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"rangefinder/internal/core/errors"
	"rangefinder/internal/core/ports"
	"rangefinder/internal/data/rangestore"
	"rangefinder/internal/engine/registry"
	"rangefinder/internal/shared/observability"
)

// RunScan walks the requested roots (the configured roots when empty) and
// extracts the requested capabilities from every supported file.
func (a *App) RunScan(ctx context.Context, req ports.ScanRequest) (ports.ScanResult, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	ctx, span := observability.Tracer.Start(ctx, "RunScan")
	defer span.End()

	started := time.Now()
	roots := req.Paths
	if len(roots) == 0 {
		roots = a.Paths.Roots
	}
	span.SetAttributes(attribute.StringSlice("scan.roots", roots))
	capabilities, err := a.ParseCapabilities(req.Capabilities)
	if err != nil {
		return ports.ScanResult{}, err
	}

	files, skipped, err := a.ScanDirectories(roots, a.Config.Scan.ExcludeDirs, a.Config.Scan.ExcludeFiles)
	if err != nil {
		return ports.ScanResult{}, err
	}

	res, err := a.extractFiles(ctx, roots, files, capabilities)
	if err != nil {
		return ports.ScanResult{}, err
	}
	res.FilesSkipped += skipped
	observability.FilesScannedTotal.WithLabelValues("skipped").Add(float64(skipped))
	res.Duration = time.Since(started)
	observability.ScanDuration.Observe(res.Duration.Seconds())

	span.SetAttributes(
		attribute.Int("scan.files", res.FilesScanned),
		attribute.Int("scan.failed", res.FilesFailed),
		attribute.Int("scan.ranges", res.RangeCount),
	)
	if err := a.finishRun(res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finish run")
		return res, err
	}
	a.recordScan(res)
	slog.Info("scan complete",
		"run_id", res.RunID,
		"files", res.FilesScanned,
		"skipped", res.FilesSkipped,
		"failed", res.FilesFailed,
		"ranges", res.RangeCount,
		"duration", res.Duration,
	)
	return res, nil
}

// ScanFiles extracts the configured capabilities from an explicit file list.
// Missing, excluded and unsupported files are counted as skipped.
func (a *App) ScanFiles(ctx context.Context, paths []string) (ports.ScanResult, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	started := time.Now()
	capabilities := a.Config.ScanCapabilities()
	fileGlobs, err := compileGlobs(a.Config.Scan.ExcludeFiles, "exclude file")
	if err != nil {
		return ports.ScanResult{}, err
	}

	files := make([]string, 0, len(paths))
	skipped := 0
	for _, path := range paths {
		if matchesAny(fileGlobs, filepath.Base(path)) {
			skipped++
			continue
		}
		if _, ok := a.Registry.LanguageForPath(path); !ok {
			skipped++
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			skipped++
			continue
		}
		files = append(files, path)
	}

	res, err := a.extractFiles(ctx, paths, files, capabilities)
	if err != nil {
		return ports.ScanResult{}, err
	}
	res.FilesSkipped += skipped
	res.Duration = time.Since(started)
	if err := a.finishRun(res); err != nil {
		return res, err
	}
	a.recordScan(res)
	return res, nil
}

// ScanDirectories returns the supported files under paths in walk order and
// the number of files skipped because no language claims them. Patterns are
// matched against base names.
func (a *App) ScanDirectories(paths []string, excludeDirs, excludeFiles []string) ([]string, int, error) {
	dirGlobs, err := compileGlobs(excludeDirs, "exclude dir")
	if err != nil {
		return nil, 0, err
	}
	fileGlobs, err := compileGlobs(excludeFiles, "exclude file")
	if err != nil {
		return nil, 0, err
	}

	var files []string
	skipped := 0
	seen := make(map[string]bool)
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			base := filepath.Base(path)
			if d.IsDir() {
				if path != root && matchesAny(dirGlobs, base) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || matchesAny(fileGlobs, base) {
				return nil
			}
			if _, ok := a.Registry.LanguageForPath(path); !ok {
				skipped++
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, 0, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return files, skipped, nil
}

// extractFiles runs the bounded worker pool over files and, with a store,
// queues one record per file under a new run.
func (a *App) extractFiles(ctx context.Context, roots, files []string, capabilities []registry.Capability) (ports.ScanResult, error) {
	var res ports.ScanResult
	if a.store != nil {
		names := make([]string, 0, len(capabilities))
		for _, c := range capabilities {
			names = append(names, string(c))
		}
		run, err := a.store.BeginRun(roots, names)
		if err != nil {
			return res, err
		}
		res.RunID = run.ID
	}

	workers := a.Config.Scan.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]ports.FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := a.limiter.Wait(gctx, 1); err != nil {
				return err
			}
			results[i] = a.extractFile(gctx, path, capabilities)
			if res.RunID != "" {
				if err := a.enqueueWrite(ports.WriteRequest{RunID: res.RunID, File: fileRecord(results[i])}); err != nil {
					slog.Warn("failed to persist file ranges", "path", path, "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	for _, r := range results {
		res.FilesScanned++
		if r.Err != nil {
			res.FilesFailed++
			continue
		}
		res.RangeCount += len(r.Ranges)
	}
	res.Files = results
	return res, nil
}

func (a *App) extractFile(ctx context.Context, path string, capabilities []registry.Capability) ports.FileResult {
	out := ports.FileResult{Path: path}
	language, ok := a.Registry.LanguageForPath(path)
	if !ok {
		out.Err = errors.New(errors.CodeUnsupportedLanguage, fmt.Sprintf("no language registered for %s", filepath.Ext(path)))
		observability.FilesScannedTotal.WithLabelValues("failed").Inc()
		return out
	}
	out.Language = language

	ctx, span := observability.Tracer.Start(ctx, "ExtractFile",
		trace.WithAttributes(attribute.String("file.path", path), attribute.String("file.language", language)))
	defer span.End()

	content, err := os.ReadFile(path)
	if err != nil {
		out.Err = err
		observability.FilesScannedTotal.WithLabelValues("failed").Inc()
		slog.Warn("failed to read file", "path", path, "error", err)
		return out
	}

	ranges, err := a.ExtractSource(ctx, content, language, capabilities)
	if err != nil {
		out.Err = errors.AddContext(err, errors.CtxPath, path)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(errors.CodeOf(err)))
		observability.FilesScannedTotal.WithLabelValues("failed").Inc()
		slog.Warn("failed to extract ranges", "path", path, "language", language, "code", errors.CodeOf(err), "error", err)
		return out
	}
	out.Ranges = ranges
	observability.FilesScannedTotal.WithLabelValues("ok").Inc()
	return out
}

func (a *App) finishRun(res ports.ScanResult) error {
	if a.store == nil || res.RunID == "" {
		return nil
	}
	// Queued records must land before the run is stamped finished.
	if err := a.flushWrites(context.Background()); err != nil {
		return err
	}
	return a.store.FinishRun(res.RunID, rangestore.RunStats{
		FilesScanned: res.FilesScanned,
		FilesSkipped: res.FilesSkipped,
		FilesFailed:  res.FilesFailed,
		RangeCount:   res.RangeCount,
	})
}

func fileRecord(r ports.FileResult) rangestore.FileRecord {
	rec := rangestore.FileRecord{
		Path:     r.Path,
		Language: r.Language,
		Ranges:   r.Ranges,
	}
	if r.Err != nil {
		rec.ErrorCode = string(errors.CodeOf(r.Err))
		rec.ErrorMessage = r.Err.Error()
	}
	return rec
}

func compileGlobs(patterns []string, label string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", label, p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchesAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
