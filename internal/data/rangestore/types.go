// Package rangestore persists scan runs and their extracted ranges in SQLite.
package rangestore

import (
	"time"

	"rangefinder/internal/engine/syntax"
)

const SchemaVersion = 1

// Run is one scan over a set of roots.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Roots        []string
	Capabilities []string
	Stats        RunStats
}

type RunStats struct {
	FilesScanned int
	FilesSkipped int
	FilesFailed  int
	RangeCount   int
}

// FileRecord is the extraction outcome for one file in a run. ErrorCode is
// empty on success.
type FileRecord struct {
	Path         string
	Language     string
	ErrorCode    string
	ErrorMessage string
	Ranges       []RangeRecord
}

// RangeRecord is one identifier/block pair. Ordinal keeps extraction order
// within a capability.
type RangeRecord struct {
	Capability string
	Ordinal    int
	Kind       string
	Name       string
	Identifier syntax.TextRange
	Block      syntax.TextRange
}
