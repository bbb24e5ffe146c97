package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: RANGEFINDER_[SECTION]_[KEY] (e.g., RANGEFINDER_LIMITS_PARSE_TIMEOUT).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.GrammarsPath, "RANGEFINDER_GRAMMARS_PATH")
	setEnvString(&cfg.QueriesPath, "RANGEFINDER_QUERIES_PATH")

	// Limits
	setEnvInt(&cfg.Limits.MaxSourceChars, "RANGEFINDER_LIMITS_MAX_SOURCE_CHARS")
	setEnvDuration(&cfg.Limits.ParseTimeout, "RANGEFINDER_LIMITS_PARSE_TIMEOUT")

	// Scan
	setEnvInt(&cfg.Scan.Workers, "RANGEFINDER_SCAN_WORKERS")
	setEnvFloat64(&cfg.Scan.FilesPerSecond, "RANGEFINDER_SCAN_FILES_PER_SECOND")

	// Store
	setEnvBool(&cfg.Store.Enabled, "RANGEFINDER_STORE_ENABLED")
	setEnvString(&cfg.Store.Path, "RANGEFINDER_STORE_PATH")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "RANGEFINDER_WATCH_DEBOUNCE")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "RANGEFINDER_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "RANGEFINDER_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
