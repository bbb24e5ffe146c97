package util

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadMemory(t *testing.T) {
	runtime.GC()
	mem := ReadMemory()
	assert.GreaterOrEqual(t, mem.NumGC, uint32(1))
	assert.Positive(t, mem.HeapObjects)
}
