// Package treesitter implements the syntax engine interfaces on top of
// go-tree-sitter.
package treesitter

import (
	"context"
	"fmt"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"rangefinder/internal/engine/grammar"
	"rangefinder/internal/engine/syntax"
)

// readChunk bounds how much source is handed to the parser per read callback.
const readChunk = 16 * 1024

type GrammarLoader interface {
	Load(source syntax.GrammarSource) (*sitter.Language, error)
}

var _ GrammarLoader = (*grammar.Loader)(nil)

type Engine struct {
	loader GrammarLoader
}

func New(loader GrammarLoader) *Engine {
	return &Engine{loader: loader}
}

type language struct {
	name  string
	inner *sitter.Language
}

func (l *language) Name() string { return l.name }

// LoadGrammar is not cancellable: loading a builtin or a verified library runs
// to completion. Callers bound their own wait.
func (e *Engine) LoadGrammar(_ context.Context, source syntax.GrammarSource) (syntax.Grammar, error) {
	lang, err := e.loader.Load(source)
	if err != nil {
		return nil, err
	}
	if lang == nil {
		return nil, fmt.Errorf("grammar %q: loader returned no language", source.Name)
	}
	return &language{name: source.Name, inner: lang}, nil
}

func (e *Engine) NewParser(g syntax.Grammar) (syntax.Parser, error) {
	lang, err := unwrapGrammar(g)
	if err != nil {
		return nil, err
	}
	p := sitter.NewParser()
	if err := p.SetLanguage(lang.inner); err != nil {
		p.Close()
		return nil, fmt.Errorf("bind grammar %q: %w", lang.name, err)
	}
	return &parser{inner: p}, nil
}

func (e *Engine) CompileQuery(g syntax.Grammar, pattern string) (syntax.Query, error) {
	lang, err := unwrapGrammar(g)
	if err != nil {
		return nil, err
	}
	q, qerr := sitter.NewQuery(lang.inner, pattern)
	if qerr != nil {
		return nil, fmt.Errorf("compile query for %q: %w", lang.name, qerr)
	}
	return &query{inner: q}, nil
}

func unwrapGrammar(g syntax.Grammar) (*language, error) {
	lang, ok := g.(*language)
	if !ok || lang == nil {
		return nil, fmt.Errorf("grammar %T was not loaded by the tree-sitter engine", g)
	}
	return lang, nil
}

type parser struct {
	inner   *sitter.Parser
	timeout time.Duration
}

func (p *parser) SetTimeout(d time.Duration) {
	p.timeout = d
}

// Parse returns nil when the deadline passes before the parse completes.
func (p *parser) Parse(source []byte) syntax.Tree {
	var opts *sitter.ParseOptions
	if p.timeout > 0 {
		deadline := time.Now().Add(p.timeout)
		opts = &sitter.ParseOptions{
			ProgressCallback: func(sitter.ParseState) bool {
				return time.Now().After(deadline)
			},
		}
	}

	length := len(source)
	read := func(offset int, _ sitter.Point) []byte {
		if offset >= length {
			return []byte{}
		}
		end := offset + readChunk
		if end > length {
			end = length
		}
		return source[offset:end]
	}

	t := p.inner.ParseWithOptions(read, nil, opts)
	if t == nil {
		p.inner.Reset()
		return nil
	}
	return &tree{inner: t}
}

func (p *parser) Close() {
	p.inner.Close()
}

type tree struct {
	inner *sitter.Tree
}

func (t *tree) Close() {
	if t.inner != nil {
		t.inner.Close()
		t.inner = nil
	}
}

type query struct {
	inner *sitter.Query
}

func (q *query) CaptureNames() []string {
	return q.inner.CaptureNames()
}

// Matches copies every match out of the cursor; the cursor reuses match
// memory between iterations.
func (q *query) Matches(t syntax.Tree, source []byte) ([]syntax.Match, error) {
	tt, ok := t.(*tree)
	if !ok || tt == nil || tt.inner == nil {
		return nil, fmt.Errorf("tree %T was not produced by the tree-sitter engine", t)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	names := q.inner.CaptureNames()
	matches := cursor.Matches(q.inner, tt.inner.RootNode(), source)

	out := make([]syntax.Match, 0)
	for m := matches.Next(); m != nil; m = matches.Next() {
		match := syntax.Match{
			Pattern:  int(m.PatternIndex),
			Captures: make([]syntax.Capture, 0, len(m.Captures)),
		}
		for _, c := range m.Captures {
			name := ""
			if int(c.Index) < len(names) {
				name = names[c.Index]
			}
			match.Captures = append(match.Captures, syntax.Capture{
				Index: int(c.Index),
				Name:  name,
				Range: rangeOf(&c.Node),
			})
		}
		out = append(out, match)
	}
	return out, nil
}

func (q *query) Close() {
	q.inner.Close()
}

func rangeOf(n *sitter.Node) syntax.TextRange {
	start, end := n.StartPosition(), n.EndPosition()
	return syntax.TextRange{
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
		Start:     syntax.Position{Line: int(start.Row), Column: int(start.Column)},
		End:       syntax.Position{Line: int(end.Row), Column: int(end.Column)},
	}
}
