package registry

import (
	"fmt"
	"strings"
	"sync"

	"rangefinder/internal/engine/syntax"
)

type QueryState int

const (
	QueryPending QueryState = iota
	QueryCompiled
	QueryFailed
)

func (s QueryState) String() string {
	switch s {
	case QueryCompiled:
		return "compiled"
	case QueryFailed:
		return "failed"
	default:
		return "pending"
	}
}

// CompileFunc compiles raw query text against a grammar.
type CompileFunc func(text string) (syntax.Query, error)

// MemoizedQuery holds raw query text and the outcome of compiling it. The
// first Get compiles; every later Get returns the same query or the same error.
type MemoizedQuery struct {
	text string

	mu    sync.Mutex
	done  bool
	query syntax.Query
	err   error
}

func NewMemoizedQuery(text string) *MemoizedQuery {
	return &MemoizedQuery{text: text}
}

func (q *MemoizedQuery) Text() string {
	return q.text
}

// Empty reports whether the query has no pattern text.
func (q *MemoizedQuery) Empty() bool {
	return strings.TrimSpace(q.text) == ""
}

// Get returns the compiled query, compiling it with compile on first use.
// Concurrent first callers block until the single compilation finishes.
func (q *MemoizedQuery) Get(compile CompileFunc) (syntax.Query, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.done {
		return q.query, q.err
	}

	q.query, q.err = safeCompile(compile, q.text)
	if q.err != nil && q.query != nil {
		q.query.Close()
		q.query = nil
	}
	q.done = true
	return q.query, q.err
}

func safeCompile(compile CompileFunc, text string) (query syntax.Query, err error) {
	defer func() {
		if r := recover(); r != nil {
			query = nil
			err = fmt.Errorf("query compilation panicked: %v", r)
		}
	}()
	return compile(text)
}

// State reports whether the query has been compiled, and the cached error if compilation failed.
func (q *MemoizedQuery) State() (QueryState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case !q.done:
		return QueryPending, nil
	case q.err != nil:
		return QueryFailed, q.err
	default:
		return QueryCompiled, nil
	}
}

// Close releases the compiled query. A closed MemoizedQuery compiles again on next use.
func (q *MemoizedQuery) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.query != nil {
		q.query.Close()
	}
	q.query = nil
	q.err = nil
	q.done = false
}
