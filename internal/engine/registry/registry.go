// Package registry maps language ids to their grammar source, named
// structural queries, and namespace taxonomy.
package registry

import (
	"fmt"
	"path/filepath"
	"strings"

	"rangefinder/internal/core/errors"
	"rangefinder/internal/engine/syntax"
	"rangefinder/internal/shared/util"
)

// Capability names an extraction purpose backed by one query per language.
type Capability string

const (
	CapabilityMethod    Capability = "method"
	CapabilityClass     Capability = "class"
	CapabilityHoverable Capability = "hoverable"
	CapabilityStructure Capability = "structure"
	CapabilityMethodIO  Capability = "methodIO"
)

// Capabilities lists every capability in a stable order.
var Capabilities = []Capability{
	CapabilityMethod,
	CapabilityClass,
	CapabilityHoverable,
	CapabilityStructure,
	CapabilityMethodIO,
}

// ParseCapability resolves a capability name, case-sensitively.
func ParseCapability(name string) (Capability, bool) {
	for _, c := range Capabilities {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Definition is the per-language registration record.
type Definition struct {
	ID         string
	Extensions []string
	Grammar    syntax.GrammarSource
	Queries    map[Capability]string
	Namespaces Taxonomy
	Enabled    bool
}

// Bundle is the resolved, shared form of a Definition. Its queries compile
// lazily and are safe for concurrent use.
type Bundle struct {
	ID         string
	Extensions []string
	Grammar    syntax.GrammarSource
	Namespaces Taxonomy

	queries map[Capability]*MemoizedQuery
}

func newBundle(def Definition) *Bundle {
	b := &Bundle{
		ID:         def.ID,
		Extensions: append([]string(nil), def.Extensions...),
		Grammar:    def.Grammar,
		Namespaces: append(Taxonomy(nil), def.Namespaces...),
		queries:    make(map[Capability]*MemoizedQuery, len(Capabilities)),
	}
	for _, c := range Capabilities {
		b.queries[c] = NewMemoizedQuery(def.Queries[c])
	}
	return b
}

// Query returns the memoized query for capability. Unknown capabilities get
// an empty query, which matches nothing.
func (b *Bundle) Query(capability Capability) *MemoizedQuery {
	if q, ok := b.queries[capability]; ok {
		return q
	}
	return NewMemoizedQuery("")
}

func (b *Bundle) close() {
	for _, q := range b.queries {
		q.Close()
	}
}

type Registry struct {
	bundles   map[string]*Bundle
	extOwners map[string]string
}

// New builds a registry from the enabled definitions in defs.
func New(defs map[string]Definition) (*Registry, error) {
	if err := validateDefinitions(defs); err != nil {
		return nil, err
	}
	r := &Registry{
		bundles:   make(map[string]*Bundle),
		extOwners: make(map[string]string),
	}
	for _, id := range util.SortedStringKeys(defs) {
		def := defs[id]
		if !def.Enabled {
			continue
		}
		def.ID = id
		r.bundles[id] = newBundle(def)
		for _, ext := range normalizeExtensions(def.Extensions) {
			r.extOwners[ext] = id
		}
	}
	return r, nil
}

// Default returns a registry holding the built-in language table.
func Default() *Registry {
	r, err := New(DefaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("built-in language table is invalid: %v", err))
	}
	return r
}

// Resolve looks up a bundle by exact language id.
func (r *Registry) Resolve(languageID string) (*Bundle, error) {
	if b, ok := r.bundles[languageID]; ok {
		return b, nil
	}
	return nil, errors.New(errors.CodeUnsupportedLanguage, fmt.Sprintf("no registry entry for language %q", languageID))
}

// Languages returns the registered ids in sorted order.
func (r *Registry) Languages() []string {
	return util.SortedStringKeys(r.bundles)
}

// LanguageForPath maps a file path to a language id by extension.
func (r *Registry) LanguageForPath(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	id, ok := r.extOwners[ext]
	return id, ok
}

// Extensions returns every registered extension in sorted order.
func (r *Registry) Extensions() []string {
	return util.SortedStringKeys(r.extOwners)
}

// Close releases every compiled query.
func (r *Registry) Close() {
	for _, b := range r.bundles {
		b.close()
	}
}
