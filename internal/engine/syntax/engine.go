package syntax

import (
	"context"
	"time"
)

// GrammarSource describes where a language's grammar comes from. An empty
// Library means the grammar is compiled into the binary under Name.
type GrammarSource struct {
	Name    string
	Library string // shared library path, relative to the grammars directory
	Symbol  string // exported constructor, e.g. tree_sitter_kotlin
}

// Dynamic reports whether the grammar is loaded from a shared library.
func (s GrammarSource) Dynamic() bool {
	return s.Library != ""
}

// Grammar is an engine-specific compiled grammar handle.
type Grammar interface {
	Name() string
}

// Tree is a parsed syntax tree owned by exactly one parsed file.
type Tree interface {
	Close()
}

// Parser turns source text into a Tree for the grammar it was bound to.
type Parser interface {
	SetTimeout(d time.Duration)
	// Parse returns nil when the timeout elapsed or the engine aborted.
	Parse(source []byte) Tree
	Close()
}

// Query is a compiled pattern query bound to one grammar.
type Query interface {
	CaptureNames() []string
	// Matches runs the query against tree's root and materializes every match.
	Matches(tree Tree, source []byte) ([]Match, error)
	Close()
}

// Engine is the external parsing and query runtime.
type Engine interface {
	LoadGrammar(ctx context.Context, source GrammarSource) (Grammar, error)
	NewParser(grammar Grammar) (Parser, error)
	CompileQuery(grammar Grammar, pattern string) (Query, error)
}
