package grammar

import (
	"fmt"
	"os"
	"path/filepath"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"rangefinder/internal/engine/syntax"
)

// Loader resolves a GrammarSource to a tree-sitter language.
type Loader struct {
	dynamic *DynamicLoader
}

// NewLoader prepares a loader for grammarsPath. With verify set, the
// manifest in grammarsPath must exist and every dynamic grammar is checked
// against it before it is opened.
func NewLoader(grammarsPath string, verify bool) (*Loader, error) {
	if grammarsPath != "" {
		if info, err := os.Stat(grammarsPath); err == nil && !info.IsDir() {
			return nil, fmt.Errorf("grammars path is not a directory: %s", grammarsPath)
		}
	}

	var manifest *Manifest
	if verify {
		var err error
		manifest, err = LoadManifest(filepath.Join(grammarsPath, ManifestFile))
		if err != nil {
			return nil, fmt.Errorf("grammar verification: %w", err)
		}
	}

	return &Loader{dynamic: NewDynamicLoader(grammarsPath, manifest)}, nil
}

func (l *Loader) Load(source syntax.GrammarSource) (*sitter.Language, error) {
	if source.Dynamic() {
		return l.dynamic.Load(source)
	}
	return Builtin(source.Name)
}

func (l *Loader) Close() {
	l.dynamic.Close()
}
