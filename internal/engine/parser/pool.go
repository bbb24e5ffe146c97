package parser

import (
	"sync"

	"rangefinder/internal/engine/syntax"
)

// ParserPool recycles parser instances bound to one grammar so that files of
// the same language do not pay parser setup on every Build.
//
// Unlike sync.Pool, idle parsers are never dropped silently: parsers beyond
// the idle limit are closed on Put, and Close releases the rest.
type ParserPool struct {
	newParser func() (syntax.Parser, error)
	maxIdle   int

	mu     sync.Mutex
	idle   []syntax.Parser
	leases int
	closed bool
}

// NewParserPool creates a pool that allocates parsers with newParser.
func NewParserPool(newParser func() (syntax.Parser, error), maxIdle int) *ParserPool {
	if maxIdle < 0 {
		maxIdle = 0
	}
	return &ParserPool{
		newParser: newParser,
		maxIdle:   maxIdle,
	}
}

// Get returns an idle parser or allocates a new one.
func (p *ParserPool) Get() (syntax.Parser, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		sp := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.leases++
		p.mu.Unlock()
		return sp, nil
	}
	p.mu.Unlock()

	sp, err := p.newParser()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.leases++
	p.mu.Unlock()
	return sp, nil
}

// Put returns sp to the pool. Callers must not use sp afterwards.
func (p *ParserPool) Put(sp syntax.Parser) {
	if sp == nil {
		return
	}

	p.mu.Lock()
	if p.leases > 0 {
		p.leases--
	}
	if p.closed || len(p.idle) >= p.maxIdle {
		p.mu.Unlock()
		sp.Close()
		return
	}
	p.idle = append(p.idle, sp)
	p.mu.Unlock()
}

// Stats returns the number of leased and idle parsers.
func (p *ParserPool) Stats() (leased, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leases, len(p.idle)
}

// Close releases idle parsers. Parsers still leased are closed when returned.
func (p *ParserPool) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, sp := range idle {
		sp.Close()
	}
}
