package grammar

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"rangefinder/internal/engine/syntax"
)

// DynamicLoader loads tree-sitter grammars from shared libraries. When a
// manifest is attached, a library is only opened after its checksum and ABI
// version match the manifest entry.
type DynamicLoader struct {
	baseDir  string
	manifest *Manifest

	mu      sync.Mutex
	loaded  map[string]*sitter.Language
	handles []uintptr
}

// NewDynamicLoader resolves relative library paths against baseDir. A nil
// manifest disables verification.
func NewDynamicLoader(baseDir string, manifest *Manifest) *DynamicLoader {
	return &DynamicLoader{
		baseDir:  baseDir,
		manifest: manifest,
		loaded:   make(map[string]*sitter.Language),
	}
}

// LibraryPath returns the absolute or baseDir-relative path of source's library.
func (dl *DynamicLoader) LibraryPath(source syntax.GrammarSource) string {
	if filepath.IsAbs(source.Library) {
		return source.Library
	}
	return filepath.Join(dl.baseDir, source.Library)
}

// Load opens source's library and calls its language constructor. Loaded
// languages are cached by library path and symbol.
func (dl *DynamicLoader) Load(source syntax.GrammarSource) (*sitter.Language, error) {
	if !source.Dynamic() {
		return nil, fmt.Errorf("grammar %q: no shared library configured", source.Name)
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	path := dl.LibraryPath(source)
	key := path + "#" + source.Symbol
	if cached, ok := dl.loaded[key]; ok {
		return cached, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("grammar %q: shared library: %w", source.Name, err)
	}

	var artifact Artifact
	if dl.manifest != nil {
		var err error
		if artifact, err = dl.verify(source, path); err != nil {
			return nil, err
		}
	}

	language, handle, err := openLanguage(path, source.Symbol)
	if err != nil {
		return nil, fmt.Errorf("grammar %q: %w", source.Name, err)
	}
	dl.handles = append(dl.handles, handle)

	if dl.manifest != nil && int(language.AbiVersion()) != artifact.ABIVersion {
		return nil, fmt.Errorf("grammar %q: library reports ABI version %d, manifest pins %d", source.Name, language.AbiVersion(), artifact.ABIVersion)
	}

	dl.loaded[key] = language
	return language, nil
}

func (dl *DynamicLoader) verify(source syntax.GrammarSource, path string) (Artifact, error) {
	artifact, ok := dl.manifest.Artifact(source.Name)
	if !ok {
		return Artifact{}, fmt.Errorf("grammar %q: language missing from manifest", source.Name)
	}
	if !dl.manifest.allowsABI(artifact.ABIVersion) {
		return Artifact{}, fmt.Errorf("grammar %q: unsupported ABI version %d", source.Name, artifact.ABIVersion)
	}
	actual, err := CalculateSHA256(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("grammar %q: hash library: %w", source.Name, err)
	}
	if actual != artifact.LibrarySHA256 {
		return Artifact{}, fmt.Errorf("grammar %q: checksum mismatch for %s", source.Name, path)
	}
	return artifact, nil
}

// Close forgets every loaded language. Library handles stay mapped because
// languages handed out earlier may still be in use.
func (dl *DynamicLoader) Close() {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.handles = nil
	dl.loaded = make(map[string]*sitter.Language)
}
