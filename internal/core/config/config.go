package config

import (
	"time"

	"rangefinder/internal/engine/registry"
)

// DefaultFile is the config file name looked up when --config is not given.
const DefaultFile = "rangefinder.toml"

type Config struct {
	Version             int                 `toml:"version"`
	GrammarsPath        string              `toml:"grammars_path"`
	QueriesPath         string              `toml:"queries_path"`
	Limits              Limits              `toml:"limits"`
	GrammarVerification GrammarVerification `toml:"grammar_verification"`
	Languages           map[string]Language `toml:"languages"`
	Scan                Scan                `toml:"scan"`
	Store               Store               `toml:"store"`
	Watch               Watch               `toml:"watch"`
	Observability       Observability       `toml:"observability"`
}

type Limits struct {
	MaxSourceChars int           `toml:"max_source_chars"`
	ParseTimeout   time.Duration `toml:"parse_timeout"`
}

type GrammarVerification struct {
	Enabled *bool `toml:"enabled"`
}

// Language overrides or extends one entry of the built-in language table.
type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
	Library    string   `toml:"library"`
	Symbol     string   `toml:"symbol"`
	Namespaces []string `toml:"namespaces"`
}

type Scan struct {
	Roots          []string `toml:"roots"`
	ExcludeDirs    []string `toml:"exclude_dirs"`
	ExcludeFiles   []string `toml:"exclude_files"`
	Workers        int      `toml:"workers"`
	FilesPerSecond float64  `toml:"files_per_second"` // 0 disables throttling
	Capabilities   []string `toml:"capabilities"`
}

type Store struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func (g GrammarVerification) IsEnabled() bool {
	if g.Enabled == nil {
		return true
	}
	return *g.Enabled
}

// LanguageOverrides converts the [languages] tables into registry overrides.
func (c *Config) LanguageOverrides() map[string]registry.LanguageOverride {
	out := make(map[string]registry.LanguageOverride, len(c.Languages))
	for id, lang := range c.Languages {
		out[id] = registry.LanguageOverride{
			Enabled:    lang.Enabled,
			Extensions: append([]string(nil), lang.Extensions...),
			Library:    lang.Library,
			Symbol:     lang.Symbol,
			Namespaces: append([]string(nil), lang.Namespaces...),
		}
	}
	return out
}

// ScanCapabilities returns the configured capabilities. Load has already
// rejected unknown names.
func (c *Config) ScanCapabilities() []registry.Capability {
	out := make([]registry.Capability, 0, len(c.Scan.Capabilities))
	for _, name := range c.Scan.Capabilities {
		if capability, ok := registry.ParseCapability(name); ok {
			out = append(out, capability)
		}
	}
	return out
}
