package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rangefinder/internal/shared/observability"
	"rangefinder/internal/shared/util"
)

var _ observability.HealthChecker = (*HealthService)(nil)

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	// Registry and grammars
	if s.app.Registry == nil || s.app.Builder == nil {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	} else {
		loaded := s.app.Builder.LoadedLanguages()
		status.Components["parser"] = fmt.Sprintf("ok (%d languages, loaded: %s)",
			len(s.app.Registry.Languages()), strings.Join(loaded, ","))
	}

	// Range store
	if s.app.store != nil {
		if _, err := s.app.store.LoadRuns(1); err != nil {
			status.Status = "degraded"
			status.Components["range_store"] = "error: " + err.Error()
		} else {
			status.Components["range_store"] = "ok"
		}
	} else if s.app.Config.Store.Enabled {
		status.Status = "degraded"
		status.Components["range_store"] = "missing but enabled in config"
	}

	if res, at := s.app.LastScan(); !at.IsZero() {
		status.Components["last_scan"] = fmt.Sprintf("%s (%d files, %d failed, %d ranges)",
			at.Format(time.RFC3339), res.FilesScanned, res.FilesFailed, res.RangeCount)
	}
	mem := util.ReadMemory()
	status.Components["heap_alloc_mb"] = fmt.Sprintf("%d", mem.HeapAllocMB)
	status.Components["gc_cycles"] = fmt.Sprintf("%d", mem.NumGC)

	return status
}
