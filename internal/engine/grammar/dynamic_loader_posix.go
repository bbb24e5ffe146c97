//go:build !windows

package grammar

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

func openLanguage(path, symbol string) (*sitter.Language, uintptr, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, 0, fmt.Errorf("dlopen %s: %w", path, err)
	}

	if _, err := purego.Dlsym(handle, symbol); err != nil {
		return nil, handle, fmt.Errorf("lookup %s in %s: %w", symbol, path, err)
	}

	var langFunc func() uintptr
	purego.RegisterLibFunc(&langFunc, handle, symbol)

	ptr := langFunc()
	if ptr == 0 {
		return nil, handle, fmt.Errorf("%s() returned null", symbol)
	}

	// ptr is a static TSLanguage* owned by the library, never a Go pointer.
	return sitter.NewLanguage(*(*unsafe.Pointer)(unsafe.Pointer(&ptr))), handle, nil
}
