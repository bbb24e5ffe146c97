package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	normalizeScan(&cfg)
	normalizeLanguages(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.GrammarsPath) == "" {
		cfg.GrammarsPath = "grammars"
	}
	if strings.TrimSpace(cfg.QueriesPath) == "" {
		cfg.QueriesPath = "queries"
	}

	if cfg.Limits.MaxSourceChars == 0 {
		cfg.Limits.MaxSourceChars = 500_000
	}
	if cfg.Limits.ParseTimeout == 0 {
		cfg.Limits.ParseTimeout = time.Second
	}

	if len(cfg.Scan.Roots) == 0 {
		cfg.Scan.Roots = []string{"."}
	}
	if cfg.Scan.ExcludeDirs == nil {
		cfg.Scan.ExcludeDirs = []string{".git", "node_modules", "vendor", "target", "build", "dist"}
	}
	if cfg.Scan.Workers <= 0 {
		cfg.Scan.Workers = runtime.NumCPU()
	}
	if len(cfg.Scan.Capabilities) == 0 {
		cfg.Scan.Capabilities = []string{"method", "class"}
	}

	if strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = "rangefinder.db"
	}
	if cfg.Store.BusyTimeout <= 0 {
		cfg.Store.BusyTimeout = 5 * time.Second
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}

func normalizeScan(cfg *Config) {
	cfg.Scan.Roots = trimAll(cfg.Scan.Roots)
	cfg.Scan.ExcludeDirs = trimAll(cfg.Scan.ExcludeDirs)
	cfg.Scan.ExcludeFiles = trimAll(cfg.Scan.ExcludeFiles)
	cfg.Scan.Capabilities = trimAll(cfg.Scan.Capabilities)
}

func normalizeLanguages(cfg *Config) {
	for id, lang := range cfg.Languages {
		lang.Library = strings.TrimSpace(lang.Library)
		lang.Symbol = strings.TrimSpace(lang.Symbol)
		cfg.Languages[id] = lang
	}
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
