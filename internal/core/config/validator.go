package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/gobwas/glob"

	"rangefinder/internal/engine/registry"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	validators := []func(*Config) error{
		validateVersion,
		validateLimits,
		validateLanguages,
		validateScan,
		validateStore,
		validateWatch,
		validateObservability,
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateLimits(cfg *Config) error {
	if cfg.Limits.MaxSourceChars <= 0 {
		return fmt.Errorf("limits.max_source_chars must be > 0, got %d", cfg.Limits.MaxSourceChars)
	}
	if cfg.Limits.ParseTimeout < 0 {
		return fmt.Errorf("limits.parse_timeout must not be negative, got %s", cfg.Limits.ParseTimeout)
	}
	return nil
}

func validateLanguages(cfg *Config) error {
	for language, settings := range cfg.Languages {
		if strings.TrimSpace(language) == "" {
			return fmt.Errorf("languages key must not be empty")
		}
		for _, ext := range settings.Extensions {
			if strings.TrimSpace(ext) == "" {
				return fmt.Errorf("languages.%s.extensions must not include empty values", language)
			}
		}
		if settings.Symbol != "" && settings.Library == "" {
			return fmt.Errorf("languages.%s.symbol requires languages.%s.library", language, language)
		}
	}
	return nil
}

func validateScan(cfg *Config) error {
	if cfg.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be >= 1, got %d", cfg.Scan.Workers)
	}
	if cfg.Scan.FilesPerSecond < 0 {
		return fmt.Errorf("scan.files_per_second must not be negative")
	}
	for _, pattern := range append(append([]string(nil), cfg.Scan.ExcludeDirs...), cfg.Scan.ExcludeFiles...) {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("scan exclude pattern %q: %w", pattern, err)
		}
	}
	for _, name := range cfg.Scan.Capabilities {
		if _, ok := registry.ParseCapability(name); !ok {
			return fmt.Errorf("scan.capabilities: unknown capability %q", name)
		}
	}
	return nil
}

func validateStore(cfg *Config) error {
	if cfg.Store.Enabled && strings.TrimSpace(cfg.Store.Path) == "" {
		return fmt.Errorf("store.path must not be empty when store.enabled=true")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	addr := strings.TrimSpace(cfg.Observability.MetricsAddr)
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("observability.metrics_addr %q: %w", addr, err)
	}
	return nil
}
