package graphrt

import "errors"

// Error definitions for the graphrt package.
var (
	ErrInvalidGraph      = errors.New("invalid graph topology")
	ErrInvalidParams     = errors.New("invalid params blob")
	ErrShapeMismatch     = errors.New("tensor shape mismatch")
	ErrDTypeUnsupported  = errors.New("unsupported data type")
	ErrFuncNotFound      = errors.New("function not found in module")
	ErrNativeUnsupported = errors.New("native modules are not supported on this build")
	ErrNotInitialized    = errors.New("runtime is not initialized")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrBufferTooSmall    = errors.New("buffer too small")
)
