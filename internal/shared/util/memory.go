package util

import "runtime"

// MemorySnapshot is the process memory summary reported by /health.
type MemorySnapshot struct {
	HeapAllocMB uint64
	HeapObjects uint64
	NumGC       uint32
}

// ReadMemory samples the Go runtime. It briefly stops the world, so callers
// use it on health checks, not per file.
func ReadMemory() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemorySnapshot{
		HeapAllocMB: m.HeapAlloc >> 20,
		HeapObjects: m.HeapObjects,
		NumGC:       m.NumGC,
	}
}
