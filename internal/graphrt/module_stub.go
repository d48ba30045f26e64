//go:build !cgo || !(linux || darwin)

package graphrt

import "fmt"

// LoadModule loads a compiled operator library from a shared object. This build
// has no dynamic loader, so it always fails with ErrNativeUnsupported.
func LoadModule(path string) (Module, error) {
	return nil, fmt.Errorf("%w: %s", ErrNativeUnsupported, path)
}
