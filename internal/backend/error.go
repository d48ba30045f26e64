package backend

import "errors"

// Error definitions for the backend package.
var (
	ErrNotFound          = errors.New("backend not found in registry")
	ErrAlreadyRegistered = errors.New("backend is already registered in the registry")
	ErrUnknownKind       = errors.New("unknown backend kind")
	ErrMissingArtifact   = errors.New("missing model artifact")
	ErrSizeMismatch      = errors.New("input size mismatch")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrInputNotFound     = errors.New("input not found")
)
