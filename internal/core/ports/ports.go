package ports

import (
	"context"
	"time"

	"rangefinder/internal/data/rangestore"
)

// RangeStore abstracts run and range persistence for scan workflows.
type RangeStore interface {
	BeginRun(roots, capabilities []string) (rangestore.Run, error)
	SaveFiles(runID string, records []rangestore.FileRecord) error
	FinishRun(runID string, stats rangestore.RunStats) error
	LoadRuns(limit int) ([]rangestore.Run, error)
	Close() error
}

// WriteRequest carries one extracted file to the store writer.
type WriteRequest struct {
	RunID string
	File  rangestore.FileRecord
}

type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

// WriteQueuePort buffers store writes between scan workers and the writer.
type WriteQueuePort interface {
	Enqueue(req WriteRequest) EnqueueResult
	DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]WriteRequest, error)
	Close() error
}

// ScanRequest defines a scan operation request for driving adapters.
type ScanRequest struct {
	Paths        []string
	Capabilities []string
}

// FileResult is the extraction outcome for one scanned file. Err is set
// when the file could not be parsed or queried; Ranges is then empty.
type FileResult struct {
	Path     string
	Language string
	Ranges   []rangestore.RangeRecord
	Err      error
}

// ScanResult summarizes a completed scan operation.
type ScanResult struct {
	RunID        string
	FilesScanned int
	FilesSkipped int
	FilesFailed  int
	RangeCount   int
	Duration     time.Duration
	Files        []FileResult
}

// ScanService is the driving-port surface over scan use cases.
type ScanService interface {
	RunScan(ctx context.Context, req ScanRequest) (ScanResult, error)
	ScanFiles(ctx context.Context, paths []string) (ScanResult, error)
}
