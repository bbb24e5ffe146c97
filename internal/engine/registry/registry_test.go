package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rangefinder/internal/core/errors"
)

func TestDefault_ResolvesBuiltInLanguages(t *testing.T) {
	reg := Default()
	defer reg.Close()

	for _, id := range []string{"java", "go", "python", "javascript", "typescript", "tsx", "rust", "html", "css"} {
		t.Run(id, func(t *testing.T) {
			b, err := reg.Resolve(id)
			require.NoError(t, err)
			assert.Equal(t, id, b.ID)
			assert.NotEmpty(t, b.Namespaces)
			assert.False(t, b.Query(CapabilityHoverable).Empty())
		})
	}
}

func TestResolve_NoNormalization(t *testing.T) {
	reg := Default()

	for _, id := range []string{"Java", "JAVA", " java", "kotlin", ""} {
		_, err := reg.Resolve(id)
		require.Error(t, err, id)
		assert.True(t, errors.IsCode(err, errors.CodeUnsupportedLanguage), id)
	}
}

func TestBundle_SharedAcrossResolves(t *testing.T) {
	reg := Default()
	a, err := reg.Resolve("java")
	require.NoError(t, err)
	b, err := reg.Resolve("java")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Same(t, a.Query(CapabilityMethod), b.Query(CapabilityMethod))
}

func TestBundle_UnknownCapabilityIsEmpty(t *testing.T) {
	reg := Default()
	b, err := reg.Resolve("html")
	require.NoError(t, err)

	assert.True(t, b.Query(CapabilityMethod).Empty())
	assert.True(t, b.Query(Capability("scope")).Empty())
}

func TestLanguageForPath(t *testing.T) {
	reg := Default()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"src/Main.java", "java", true},
		{"pkg/api/server.go", "go", true},
		{"UPPER.PY", "python", true},
		{"web/app.tsx", "tsx", true},
		{"web/app.ts", "typescript", true},
		{"README", "", false},
		{"notes.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := reg.LanguageForPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_RejectsDuplicateExtensions(t *testing.T) {
	defs := DefaultDefinitions()
	py := defs["python"]
	py.Extensions = []string{".py", ".java"}
	defs["python"] = py

	_, err := New(defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate extension")
}

func TestBuildDefinitions_Overrides(t *testing.T) {
	off := false
	defs, err := BuildDefinitions(map[string]LanguageOverride{
		"css":    {Enabled: &off},
		"python": {Extensions: []string{"PY", ".pyw"}},
		"kotlin": {Library: "kotlin/kotlin.so", Extensions: []string{"kt"}, Namespaces: []string{"class", "method", "class"}},
	}, "")
	require.NoError(t, err)

	assert.False(t, defs["css"].Enabled)
	assert.Equal(t, []string{".py", ".pyw"}, defs["python"].Extensions)

	kotlin := defs["kotlin"]
	assert.True(t, kotlin.Enabled)
	assert.True(t, kotlin.Grammar.Dynamic())
	assert.Equal(t, "tree_sitter_kotlin", kotlin.Grammar.Symbol)
	assert.Equal(t, Taxonomy{NamespaceClass, NamespaceMethod}, kotlin.Namespaces)

	reg, err := New(defs)
	require.NoError(t, err)
	_, err = reg.Resolve("css")
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedLanguage))
	id, ok := reg.LanguageForPath("Main.kt")
	assert.True(t, ok)
	assert.Equal(t, "kotlin", id)
}

func TestBuildDefinitions_UnknownLanguageWithoutLibrary(t *testing.T) {
	_, err := BuildDefinitions(map[string]LanguageOverride{"kotlin": {}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kotlin")
}

func TestBuild_QueryFileOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "java"), 0o755))
	custom := "(constructor_declaration name: (identifier) @name.definition.constructor) @definition.constructor\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "java", "method.scm"), []byte(custom), 0o644))

	reg, err := Build(nil, dir)
	require.NoError(t, err)

	java, err := reg.Resolve("java")
	require.NoError(t, err)
	assert.Equal(t, custom, java.Query(CapabilityMethod).Text())
	assert.Equal(t, javaClassQuery, java.Query(CapabilityClass).Text())
}

func TestParseCapability(t *testing.T) {
	c, ok := ParseCapability("methodIO")
	assert.True(t, ok)
	assert.Equal(t, CapabilityMethodIO, c)

	_, ok = ParseCapability("MethodIO")
	assert.False(t, ok)
}

func TestTaxonomy_Classify(t *testing.T) {
	tax := Taxonomy{NamespaceLocal, NamespaceMethod, NamespaceClass}

	tests := []struct {
		capture string
		want    Namespace
		ok      bool
	}{
		{"name.definition.method", NamespaceMethod, true},
		{"definition.class", NamespaceClass, true},
		{"local", NamespaceLocal, true},
		{"name.definition.enum", "", false},
		{"hoverable", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.capture, func(t *testing.T) {
			got, ok := tax.Classify(tt.capture)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 1, tax.Index(NamespaceMethod))
	assert.Equal(t, []string{"local", "method", "class"}, tax.Strings())
}
