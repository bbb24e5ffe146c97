package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"rangefinder/internal/engine/syntax"
)

type stubQuery struct {
	closed atomic.Int32
}

func (q *stubQuery) CaptureNames() []string { return nil }
func (q *stubQuery) Matches(syntax.Tree, []byte) ([]syntax.Match, error) {
	return nil, nil
}
func (q *stubQuery) Close() { q.closed.Add(1) }

func TestMemoizedQuery_CompilesOnceUnderConcurrency(t *testing.T) {
	mq := NewMemoizedQuery("(identifier) @id")
	var calls atomic.Int32
	compile := func(string) (syntax.Query, error) {
		calls.Add(1)
		return &stubQuery{}, nil
	}

	var wg sync.WaitGroup
	results := make([]syntax.Query, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := mq.Get(compile)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = q
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one compilation, got %d", got)
	}
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("result %d differs from first compiled query", i)
		}
	}
	if state, _ := mq.State(); state != QueryCompiled {
		t.Fatalf("expected compiled state, got %s", state)
	}
}

func TestMemoizedQuery_CachesFailure(t *testing.T) {
	mq := NewMemoizedQuery("(nonexistent_node) @x")
	want := errors.New("invalid node type")
	calls := 0
	compile := func(string) (syntax.Query, error) {
		calls++
		return nil, want
	}

	for i := 0; i < 3; i++ {
		if _, err := mq.Get(compile); !errors.Is(err, want) {
			t.Fatalf("attempt %d: expected cached error, got %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected failure to be cached after one compile, got %d calls", calls)
	}
	state, err := mq.State()
	if state != QueryFailed || !errors.Is(err, want) {
		t.Fatalf("expected failed state with cached error, got %s / %v", state, err)
	}
}

func TestMemoizedQuery_RecoversCompilePanic(t *testing.T) {
	mq := NewMemoizedQuery("((")
	_, err := mq.Get(func(string) (syntax.Query, error) {
		panic("engine blew up")
	})
	if err == nil {
		t.Fatal("expected panic to be reported as error")
	}
	if state, _ := mq.State(); state != QueryFailed {
		t.Fatalf("expected failed state, got %s", state)
	}
}

func TestMemoizedQuery_CloseResets(t *testing.T) {
	mq := NewMemoizedQuery("(identifier) @id")
	stub := &stubQuery{}
	if _, err := mq.Get(func(string) (syntax.Query, error) { return stub, nil }); err != nil {
		t.Fatal(err)
	}

	mq.Close()

	if stub.closed.Load() != 1 {
		t.Fatalf("expected compiled query to be closed once, got %d", stub.closed.Load())
	}
	if state, _ := mq.State(); state != QueryPending {
		t.Fatalf("expected pending after close, got %s", state)
	}
}

func TestMemoizedQuery_Empty(t *testing.T) {
	if !NewMemoizedQuery("  \n\t").Empty() {
		t.Fatal("whitespace-only query should be empty")
	}
	if NewMemoizedQuery("(identifier) @id").Empty() {
		t.Fatal("query with a pattern should not be empty")
	}
}
