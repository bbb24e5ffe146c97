package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"rangefinder/internal/core/config"
	"rangefinder/internal/core/errors"
	"rangefinder/internal/core/ports"
	"rangefinder/internal/data/rangestore"
	"rangefinder/internal/engine/syntax"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newProject creates a project rooted at a temp dir and makes it the working
// directory for the test.
func newProject(t *testing.T, configBody string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, config.DefaultFile, configBody)
	t.Chdir(root)
	return root
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func sampleResults() []ports.FileResult {
	block := syntax.TextRange{StartByte: 0, EndByte: 20, Start: syntax.Position{Line: 1, Column: 0}, End: syntax.Position{Line: 3, Column: 1}}
	ident := syntax.TextRange{StartByte: 5, EndByte: 9, Start: syntax.Position{Line: 1, Column: 5}, End: syntax.Position{Line: 1, Column: 9}}
	return []ports.FileResult{
		{
			Path:     "a.go",
			Language: "go",
			Ranges: []rangestore.RangeRecord{
				{Capability: "method", Kind: "function", Name: "Run\tNow", Identifier: ident, Block: block},
			},
		},
		{
			Path:     "big.go",
			Language: "go",
			Err:      errors.New(errors.CodeFileTooLarge, "source too large"),
		},
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, cwd, "go.mod", "module x\n")

	cfg, path, err := loadConfig("", cwd)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, 500_000, cfg.Limits.MaxSourceChars)
	assert.Equal(t, []string{"method", "class"}, cfg.Scan.Capabilities)
}

func TestLoadConfig_ExplicitFileAndEnv(t *testing.T) {
	cwd := t.TempDir()
	path := writeFile(t, cwd, "custom.toml", "[scan]\nworkers = 3\ncapabilities = [\"class\"]\n")
	t.Setenv("RANGEFINDER_LIMITS_MAX_SOURCE_CHARS", "1024")

	cfg, found, err := loadConfig("custom.toml", cwd)
	require.NoError(t, err)
	assert.Equal(t, path, found)
	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.Equal(t, []string{"class"}, cfg.Scan.Capabilities)
	assert.Equal(t, 1024, cfg.Limits.MaxSourceChars)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, _, err := loadConfig("nope.toml", t.TempDir())
	require.Error(t, err)
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{formatJSON, formatYAML, formatTSV} {
		assert.NoError(t, validateFormat(f))
	}
	assert.ErrorContains(t, validateFormat("xml"), "unsupported format")
}

func TestWriteFiles_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFiles(&buf, formatJSON, sampleResults()))

	var views []fileView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &views))
	require.Len(t, views, 2)
	require.Len(t, views[0].Ranges, 1)
	assert.Equal(t, 5, views[0].Ranges[0].Identifier.StartByte)
	assert.Equal(t, 3, views[0].Ranges[0].Block.EndLine)
	assert.Equal(t, string(errors.CodeFileTooLarge), views[1].ErrorCode)
	assert.Empty(t, views[1].Ranges)
}

func TestWriteFiles_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFiles(&buf, formatYAML, sampleResults()))

	var views []fileView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "function", views[0].Ranges[0].Kind)
}

func TestWriteFiles_TSVEscapesNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFiles(&buf, formatTSV, sampleResults()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "path\tlanguage\t"))
	assert.Contains(t, lines[1], "Run\\tNow")
	assert.True(t, strings.HasSuffix(lines[2], string(errors.CodeFileTooLarge)))
}

func TestExecute_ExtractFile(t *testing.T) {
	root := newProject(t, "")
	path := writeFile(t, root, "Greeter.java", "class Greeter {\n  void greet() {}\n}\n")

	code, stdout, stderr := run(t, "extract", path, "--capability", "method,class")
	require.Equal(t, 0, code, stderr)

	var views []fileView
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "java", views[0].Language)

	names := map[string]string{}
	for _, r := range views[0].Ranges {
		names[r.Capability] = r.Name
	}
	assert.Equal(t, "greet", names["method"])
	assert.Equal(t, "Greeter", names["class"])
}

func TestExecute_ExtractStdinRequiresLang(t *testing.T) {
	newProject(t, "")
	code, _, stderr := run(t, "extract", "-")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--lang is required")
}

func TestExecute_ExtractUnknownExtension(t *testing.T) {
	root := newProject(t, "")
	path := writeFile(t, root, "notes.txt", "hello\n")

	code, _, stderr := run(t, "extract", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, string(errors.CodeUnsupportedLanguage))
}

func TestExecute_ExtractTooLarge(t *testing.T) {
	root := newProject(t, "[limits]\nmax_source_chars = 16\n")
	path := writeFile(t, root, "big.py", "def a():\n    pass\n\ndef b():\n    pass\n")

	code, _, stderr := run(t, "extract", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, string(errors.CodeFileTooLarge))
}

func TestExecute_ScanWithStoreThenRuns(t *testing.T) {
	root := newProject(t, "[store]\npath = \"state/ranges.db\"\n")
	writeFile(t, root, "pkg/svc.py", "def handle():\n    pass\n")
	writeFile(t, root, "pkg/util.go", "package pkg\n\nfunc Helper() {}\n")

	code, stdout, stderr := run(t, "scan", "--store", "--format", "tsv")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "handle")
	assert.Contains(t, stdout, "Helper")

	code, stdout, stderr = run(t, "runs")
	require.Equal(t, 0, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "method,class")

	code, stdout, stderr = run(t, "runs", "find", "Helper")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, filepath.Join(root, "pkg", "util.go"))
}

func TestExecute_RunsWithoutStore(t *testing.T) {
	newProject(t, "")
	code, _, stderr := run(t, "runs")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no range store")
}

func TestExecute_Languages(t *testing.T) {
	newProject(t, "")
	code, stdout, stderr := run(t, "languages")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "LANGUAGE")
	assert.Contains(t, stdout, ".java")
	assert.Contains(t, stdout, "rust")
}

func TestExecute_GrammarsVerifyWithoutDynamicGrammars(t *testing.T) {
	newProject(t, "")
	code, stdout, stderr := run(t, "grammars", "verify")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "no dynamic grammars configured")
}

func TestExecute_GrammarsVerifyDisabled(t *testing.T) {
	newProject(t, "[grammar_verification]\nenabled = false\n")
	code, stdout, _ := run(t, "grammars", "verify")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "disabled")
}

func TestExecute_GrammarsVerifyMissingManifest(t *testing.T) {
	newProject(t, "[languages.kotlin]\nextensions = [\".kt\"]\nlibrary = \"kotlin/kotlin.so\"\nsymbol = \"tree_sitter_kotlin\"\n")
	code, _, _ := run(t, "grammars", "verify")
	assert.Equal(t, 1, code)
}

func TestExecute_GrammarsListShowsBuiltins(t *testing.T) {
	newProject(t, "")
	code, stdout, stderr := run(t, "grammars", "list")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "typescript")
	assert.Contains(t, stdout, "builtin")
}

func TestExecute_UnknownFormat(t *testing.T) {
	root := newProject(t, "")
	path := writeFile(t, root, "a.go", "package a\n")
	code, _, stderr := run(t, "extract", path, "--format", "xml")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unsupported format")
}
