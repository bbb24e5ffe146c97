package treesitter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangefinder/internal/engine/grammar"
	"rangefinder/internal/engine/syntax"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	loader, err := grammar.NewLoader("", false)
	require.NoError(t, err)
	return New(loader)
}

func loadJava(t *testing.T, e *Engine) syntax.Grammar {
	t.Helper()
	g, err := e.LoadGrammar(context.Background(), syntax.GrammarSource{Name: "java"})
	require.NoError(t, err)
	return g
}

func TestEngine_ParseAndMatch(t *testing.T) {
	e := newEngine(t)
	g := loadJava(t, e)
	assert.Equal(t, "java", g.Name())

	p, err := e.NewParser(g)
	require.NoError(t, err)
	defer p.Close()

	src := []byte("class A {\n  void run() {}\n}\n")
	tree := p.Parse(src)
	require.NotNil(t, tree)
	defer tree.Close()

	q, err := e.CompileQuery(g, `(method_declaration name: (identifier) @name) @def`)
	require.NoError(t, err)
	defer q.Close()
	assert.Equal(t, []string{"name", "def"}, q.CaptureNames())

	matches, err := q.Matches(tree, src)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	name := matches[0].Named("name")
	require.Len(t, name, 1)
	assert.Equal(t, "run", name[0].Range.Text(src))
	assert.Equal(t, syntax.Position{Line: 1, Column: 7}, name[0].Range.Start)

	def := matches[0].Named("def")
	require.Len(t, def, 1)
	assert.Equal(t, "void run() {}", def[0].Range.Text(src))
}

func TestEngine_ChunkedReadMatchesWholeSource(t *testing.T) {
	e := newEngine(t)
	g := loadJava(t, e)
	p, err := e.NewParser(g)
	require.NoError(t, err)
	defer p.Close()

	var b strings.Builder
	b.WriteString("class Big {\n")
	for i := 0; i < 2000; i++ {
		b.WriteString("  void m")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString("() { String s = \"é\"; }\n")
	}
	b.WriteString("}\n")
	src := []byte(b.String())
	require.Greater(t, len(src), readChunk*2)

	tree := p.Parse(src)
	require.NotNil(t, tree)
	defer tree.Close()

	q, err := e.CompileQuery(g, `(method_declaration name: (identifier) @name)`)
	require.NoError(t, err)
	defer q.Close()

	matches, err := q.Matches(tree, src)
	require.NoError(t, err)
	assert.Len(t, matches, 2000)
}

func TestEngine_ParseTimeout(t *testing.T) {
	e := newEngine(t)
	g := loadJava(t, e)
	p, err := e.NewParser(g)
	require.NoError(t, err)
	defer p.Close()

	src := []byte("class A {" + strings.Repeat(" void m() { int a = 1 + 2 * 3; }", 20000) + "}")
	p.SetTimeout(time.Nanosecond)
	assert.Nil(t, p.Parse(src))

	p.SetTimeout(0)
	tree := p.Parse([]byte("class B {}"))
	require.NotNil(t, tree, "parser is reusable after a timed-out parse")
	tree.Close()
}

func TestEngine_MalformedQuery(t *testing.T) {
	e := newEngine(t)
	g := loadJava(t, e)

	_, err := e.CompileQuery(g, `(no_such_node) @x`)
	require.Error(t, err)

	_, err = e.CompileQuery(g, `(method_declaration`)
	require.Error(t, err)
}

type foreignTree struct{}

func (foreignTree) Close() {}

type foreignGrammar struct{}

func (foreignGrammar) Name() string { return "fake" }

func TestEngine_RejectsForeignHandles(t *testing.T) {
	e := newEngine(t)
	g := loadJava(t, e)

	q, err := e.CompileQuery(g, `(identifier) @id`)
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Matches(foreignTree{}, nil)
	assert.Error(t, err)

	_, err = e.NewParser(foreignGrammar{})
	assert.Error(t, err)
	_, err = e.CompileQuery(foreignGrammar{}, `(identifier) @id`)
	assert.Error(t, err)
}

func TestEngine_LoadGrammarErrors(t *testing.T) {
	e := newEngine(t)

	_, err := e.LoadGrammar(context.Background(), syntax.GrammarSource{Name: "cobol"})
	assert.Error(t, err)

	// Cancellation is the caller's concern; the load itself completes.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, err := e.LoadGrammar(ctx, syntax.GrammarSource{Name: "java"})
	require.NoError(t, err)
	assert.Equal(t, "java", g.Name())
}
