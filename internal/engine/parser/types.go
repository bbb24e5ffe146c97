// Package parser turns source text into a bounded, parsed File and projects
// registry queries over it into typed ranges.
package parser

import (
	"time"

	"rangefinder/internal/engine/registry"
	"rangefinder/internal/engine/syntax"
)

const (
	DefaultMaxSourceChars = 500_000
	DefaultParseTimeout   = time.Second
)

// Limits bounds the cost of a single Build.
type Limits struct {
	// MaxSourceChars rejects sources with more characters (UTF-8 runes)
	// before any grammar work.
	MaxSourceChars int
	// ParseTimeout is the wall-clock budget for one parse. Zero disables it.
	ParseTimeout time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxSourceChars: DefaultMaxSourceChars,
		ParseTimeout:   DefaultParseTimeout,
	}
}

// Symbol is a definition found by the method or class query, labeled with a
// namespace from the language's taxonomy.
type Symbol struct {
	Name       string
	Kind       registry.Namespace
	Capability registry.Capability
	Range      syntax.IdentifierBlockRange
}
