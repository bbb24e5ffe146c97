// Package grammar acquires tree-sitter languages, either from the bindings
// compiled into the binary or from verified shared libraries.
package grammar

import (
	"fmt"
	"unsafe"

	"rangefinder/internal/shared/util"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

var builtins = map[string]func() unsafe.Pointer{
	"css":        tree_sitter_css.Language,
	"go":         tree_sitter_go.Language,
	"html":       tree_sitter_html.Language,
	"java":       tree_sitter_java.Language,
	"javascript": tree_sitter_javascript.Language,
	"python":     tree_sitter_python.Language,
	"rust":       tree_sitter_rust.Language,
	"tsx":        tree_sitter_typescript.LanguageTSX,
	"typescript": tree_sitter_typescript.LanguageTypescript,
}

// Builtin returns the compiled-in grammar registered under name.
func Builtin(name string) (*sitter.Language, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("no built-in grammar named %q", name)
	}
	return sitter.NewLanguage(ctor()), nil
}

// BuiltinNames lists the compiled-in grammars in sorted order.
func BuiltinNames() []string {
	return util.SortedStringKeys(builtins)
}
