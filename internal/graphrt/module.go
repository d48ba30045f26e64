package graphrt

// Func is one compiled kernel. The arguments are the operator node's input
// tensors followed by its output tensors.
type Func func(args []*NDArray) error

// Module is a compiled operator library.
type Module interface {
	// Function looks up a kernel by its symbol name.
	Function(name string) (Func, bool)

	// Close releases the library.
	Close() error
}

// FuncModule is a Module backed by in-process Go kernels.
type FuncModule map[string]Func

var _ Module = FuncModule(nil)

// Function looks up a kernel by name.
func (m FuncModule) Function(name string) (Func, bool) {
	fn, ok := m[name]
	return fn, ok
}

// Close is a no-op.
func (m FuncModule) Close() error {
	return nil
}
