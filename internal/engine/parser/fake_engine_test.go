package parser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rangefinder/internal/engine/registry"
	"rangefinder/internal/engine/syntax"
)

type fakeGrammar struct{ name string }

func (g *fakeGrammar) Name() string { return g.name }

type fakeTree struct{ closed atomic.Bool }

func (t *fakeTree) Close() { t.closed.Store(true) }

type fakeParser struct {
	engine  *fakeEngine
	timeout time.Duration
	closed  atomic.Bool
}

func (p *fakeParser) SetTimeout(d time.Duration) { p.timeout = d }

func (p *fakeParser) Parse(source []byte) syntax.Tree {
	p.engine.parseCalls.Add(1)
	if p.engine.parseNil {
		return nil
	}
	return &fakeTree{}
}

func (p *fakeParser) Close() { p.closed.Store(true) }

type fakeQuery struct {
	matches []syntax.Match
	err     error
	panics  bool
	closed  atomic.Bool
}

func (q *fakeQuery) CaptureNames() []string { return nil }

func (q *fakeQuery) Matches(syntax.Tree, []byte) ([]syntax.Match, error) {
	if q.panics {
		panic("cursor exploded")
	}
	return q.matches, q.err
}

func (q *fakeQuery) Close() { q.closed.Store(true) }

// fakeEngine scripts engine behavior per test. Queries are looked up by their
// exact pattern text.
type fakeEngine struct {
	loadErr      error
	loadPanic    bool
	loadDelay    time.Duration
	loadStarted  chan struct{} // signalled when a load begins
	loadGate     chan struct{} // loads block until closed
	newParserErr error
	parseNil     bool

	mu      sync.Mutex
	queries map[string]*fakeQuery
	compile map[string]error

	loadCalls    atomic.Int32
	parserCalls  atomic.Int32
	parseCalls   atomic.Int32
	compileCalls atomic.Int32
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		queries: make(map[string]*fakeQuery),
		compile: make(map[string]error),
	}
}

func (e *fakeEngine) LoadGrammar(ctx context.Context, source syntax.GrammarSource) (syntax.Grammar, error) {
	e.loadCalls.Add(1)
	if e.loadStarted != nil {
		select {
		case e.loadStarted <- struct{}{}:
		default:
		}
	}
	if e.loadGate != nil {
		<-e.loadGate
	}
	if e.loadDelay > 0 {
		time.Sleep(e.loadDelay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.loadPanic {
		panic("bad grammar")
	}
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	return &fakeGrammar{name: source.Name}, nil
}

func (e *fakeEngine) NewParser(g syntax.Grammar) (syntax.Parser, error) {
	e.parserCalls.Add(1)
	if e.newParserErr != nil {
		return nil, e.newParserErr
	}
	return &fakeParser{engine: e}, nil
}

func (e *fakeEngine) CompileQuery(g syntax.Grammar, pattern string) (syntax.Query, error) {
	e.compileCalls.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.compile[pattern]; ok {
		return nil, err
	}
	if q, ok := e.queries[pattern]; ok {
		return q, nil
	}
	return nil, fmt.Errorf("no fake query for %q", pattern)
}

func (e *fakeEngine) setQuery(pattern string, q *fakeQuery) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries[pattern] = q
}

func (e *fakeEngine) failCompile(pattern string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compile[pattern] = err
}

const (
	fakeMethodPattern    = "(method) @name @block"
	fakeClassPattern     = "(class) @name @block"
	fakeHoverablePattern = "(identifier) @hoverable"
	fakeStructurePattern = "(outline) @item"
)

// newFakeRegistry returns a fresh registry so that memoized queries compiled
// against one fake engine never leak into another test.
func newFakeRegistry() *registry.Registry {
	reg, err := registry.New(map[string]registry.Definition{
		"java": {
			Extensions: []string{".java"},
			Grammar:    syntax.GrammarSource{Name: "java"},
			Queries: map[registry.Capability]string{
				registry.CapabilityMethod:    fakeMethodPattern,
				registry.CapabilityClass:     fakeClassPattern,
				registry.CapabilityHoverable: fakeHoverablePattern,
				registry.CapabilityStructure: fakeStructurePattern,
			},
			Namespaces: registry.Taxonomy{registry.NamespaceMethod, registry.NamespaceClass},
			Enabled:    true,
		},
		"toml": {
			Extensions: []string{".toml"},
			Grammar:    syntax.GrammarSource{Name: "toml"},
			Enabled:    true,
		},
	})
	if err != nil {
		panic(err)
	}
	return reg
}

func span(start, end int) syntax.TextRange {
	return syntax.TextRange{
		StartByte: start,
		EndByte:   end,
		Start:     syntax.Position{Column: start},
		End:       syntax.Position{Column: end},
	}
}

func capture(index int, name string, start, end int) syntax.Capture {
	return syntax.Capture{Index: index, Name: name, Range: span(start, end)}
}
