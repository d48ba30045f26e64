package graphrt

// Engine creates the pieces a graph model is built from.
type Engine interface {
	// LoadModule loads the compiled operator library at path.
	LoadModule(path string) (Module, error)

	// NewRuntime returns an uninitialized runtime.
	NewRuntime() Runtime
}

// DefaultEngine loads native shared libraries and executes graphs with a GraphExecutor.
type DefaultEngine struct{}

var _ Engine = DefaultEngine{}

// LoadModule loads a native shared library.
func (DefaultEngine) LoadModule(path string) (Module, error) {
	return LoadModule(path)
}

// NewRuntime returns a new GraphExecutor.
func (DefaultEngine) NewRuntime() Runtime {
	return NewGraphExecutor()
}
