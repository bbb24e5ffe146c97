//go:build windows

package grammar

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func openLanguage(path, symbol string) (*sitter.Language, uintptr, error) {
	return nil, 0, fmt.Errorf("dynamic grammar loading is currently not supported on Windows")
}
