package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rangefinder/internal/engine/syntax"
	"rangefinder/internal/shared/util"
)

// LanguageOverride adjusts a built-in language or registers a new one backed
// by a shared grammar library.
type LanguageOverride struct {
	Enabled    *bool
	Extensions []string
	Library    string
	Symbol     string
	Namespaces []string
}

// Build applies overrides to the built-in table, loads query overrides from
// queriesDir and returns the resulting registry.
func Build(overrides map[string]LanguageOverride, queriesDir string) (*Registry, error) {
	defs, err := BuildDefinitions(overrides, queriesDir)
	if err != nil {
		return nil, err
	}
	return New(defs)
}

// BuildDefinitions returns the built-in table with overrides applied. A
// query file at <queriesDir>/<language>/<capability>.scm replaces that
// capability's built-in query text.
func BuildDefinitions(overrides map[string]LanguageOverride, queriesDir string) (map[string]Definition, error) {
	defs := DefaultDefinitions()

	for _, language := range util.SortedStringKeys(overrides) {
		override := overrides[language]
		def, ok := defs[language]
		if !ok {
			if override.Library == "" {
				return nil, fmt.Errorf("unknown language override %q: library is required for new languages", language)
			}
			def = Definition{
				ID:      language,
				Grammar: syntax.GrammarSource{Name: language},
				Queries: make(map[Capability]string),
				Enabled: true,
			}
		}
		if override.Enabled != nil {
			def.Enabled = *override.Enabled
		}
		if len(override.Extensions) > 0 {
			def.Extensions = normalizeExtensions(override.Extensions)
		}
		if override.Library != "" {
			def.Grammar.Library = override.Library
			def.Grammar.Symbol = override.Symbol
			if def.Grammar.Symbol == "" {
				def.Grammar.Symbol = "tree_sitter_" + strings.ReplaceAll(language, "-", "_")
			}
		}
		if len(override.Namespaces) > 0 {
			def.Namespaces = taxonomyFromStrings(override.Namespaces)
		}
		defs[language] = def
	}

	if queriesDir != "" {
		for id, def := range defs {
			if !def.Enabled {
				continue
			}
			if err := loadQueryFiles(&def, queriesDir); err != nil {
				return nil, err
			}
			defs[id] = def
		}
	}

	if err := validateDefinitions(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

func loadQueryFiles(def *Definition, queriesDir string) error {
	for _, c := range Capabilities {
		path := filepath.Join(queriesDir, def.ID, string(c)+".scm")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read query override %s: %w", path, err)
		}
		if def.Queries == nil {
			def.Queries = make(map[Capability]string)
		}
		def.Queries[c] = string(data)
	}
	return nil
}

func validateDefinitions(defs map[string]Definition) error {
	extOwner := make(map[string]string)

	for _, id := range util.SortedStringKeys(defs) {
		def := defs[id]
		if !def.Enabled {
			continue
		}
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("language id must not be empty")
		}
		if def.Grammar.Name == "" {
			return fmt.Errorf("language %q has no grammar", id)
		}
		for _, ext := range normalizeExtensions(def.Extensions) {
			if existing, ok := extOwner[ext]; ok && existing != id {
				return fmt.Errorf("duplicate extension %q owned by %q and %q", ext, existing, id)
			}
			extOwner[ext] = id
		}
	}
	return nil
}

func normalizeExtensions(values []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, value := range values {
		raw := strings.TrimSpace(strings.ToLower(value))
		if raw == "" {
			continue
		}
		if !strings.HasPrefix(raw, ".") {
			raw = "." + raw
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}
