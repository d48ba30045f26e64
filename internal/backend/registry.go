package backend

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ekisa-team/dlrshim/internal/xfs"
)

// LoaderFunc loads the model stored at path.
type LoaderFunc func(path string) (Model, error)

// Registry maps backend kinds to their loaders.
type Registry struct {
	loaders map[Kind]LoaderFunc
	fsys    xfs.FileSystem
	mu      sync.RWMutex
}

// NewRegistry creates a new backend registry. Detection lists directories
// through fsys, or xfs.Default when fsys is nil.
func NewRegistry(fsys xfs.FileSystem) *Registry {
	if fsys == nil {
		fsys = xfs.Default
	}

	return &Registry{
		loaders: make(map[Kind]LoaderFunc),
		fsys:    fsys,
	}
}

// Register adds the loader for kind.
func (r *Registry) Register(kind Kind, fn LoaderFunc) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.loaders[kind]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, kind)
	}
	r.loaders[kind] = fn
	return nil
}

// Get retrieves the loader for kind.
func (r *Registry) Get(kind Kind) (LoaderFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.loaders[kind]
	return fn, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.loaders))
	for k := range r.loaders {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Detect classifies the model at path.
func (r *Registry) Detect(path string) (Kind, error) {
	return Detect(r.fsys, path)
}

// Load detects the backend of path and loads it with the matching loader.
func (r *Registry) Load(path string) (Model, Kind, error) {
	kind, err := r.Detect(path)
	if err != nil {
		return nil, "", err
	}

	m, err := r.LoadAs(kind, path)
	return m, kind, err
}

// LoadAs loads path with the loader registered for kind, skipping detection.
func (r *Registry) LoadAs(kind Kind, path string) (Model, error) {
	fn, ok := r.Get(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, kind)
	}

	slog.Debug("Loading model", "backend", kind, "path", path)

	m, err := fn(path)
	if err != nil {
		return nil, fmt.Errorf("load %s model %s: %w", kind, path, err)
	}
	return m, nil
}
