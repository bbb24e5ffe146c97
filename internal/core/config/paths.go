package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvedPaths holds the absolute locations derived from a Config.
type ResolvedPaths struct {
	ProjectRoot  string
	GrammarsPath string
	QueriesPath  string
	StorePath    string
	Roots        []string
}

// ResolvePaths anchors relative paths at the project root detected from cwd.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot, err := DetectProjectRoot([]string{cwd})
	if err != nil {
		return ResolvedPaths{}, err
	}

	roots := make([]string, 0, len(cfg.Scan.Roots))
	for _, root := range cfg.Scan.Roots {
		roots = append(roots, ResolveRelative(cwd, root))
	}

	return ResolvedPaths{
		ProjectRoot:  projectRoot,
		GrammarsPath: ResolveRelative(projectRoot, cfg.GrammarsPath),
		QueriesPath:  ResolveRelative(projectRoot, cfg.QueriesPath),
		StorePath:    ResolveRelative(projectRoot, cfg.Store.Path),
		Roots:        roots,
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate until it finds a project
// marker, falling back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		DefaultFile,
		"go.mod",
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

// Find returns the config file to use: explicit when set, otherwise
// rangefinder.toml in the project root if it exists, otherwise "".
func Find(explicit, cwd string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return ResolveRelative(cwd, explicit), nil
	}
	root, err := DetectProjectRoot([]string{cwd})
	if err != nil {
		return "", err
	}
	candidate := filepath.Join(root, DefaultFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", nil
}
