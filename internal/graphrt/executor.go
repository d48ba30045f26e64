package graphrt

import (
	"fmt"
	"log/slog"
	"slices"
)

const (
	opNull   = "null"
	opTVM    = "tvm_op"
	funcNop  = "__nop"
	funcCopy = "__copy"
)

// Runtime is the graph runtime surface the model adapters drive.
type Runtime interface {
	// Init builds the runtime from a topology descriptor and a compiled module.
	// mod may be nil when the topology needs no kernels.
	Init(graphJSON []byte, mod Module, devs ...Device) error

	// LoadParams binds a parameter blob to the matching graph inputs.
	LoadParams(blob []byte) error

	// NumInputs returns the combined number of data inputs and weights.
	NumInputs() int
	InputName(i int) string
	InputIndex(name string) int
	WeightNames() []string
	Input(i int) *NDArray
	SetInput(i int, src *NDArray) error

	NumOutputs() int
	Output(i int) *NDArray
	GetOutput(i int, dst *NDArray) error

	// Run executes the whole graph synchronously.
	Run() error
}

// GraphExecutor executes a topology descriptor by calling, for every operator
// node, the kernel named by its func_name attribute. Storage is planned from
// the storage_id attribute: entries sharing an id share one buffer.
type GraphExecutor struct {
	graph   *Graph
	module  Module
	devices []Device

	pool    [][]byte
	entries []*NDArray
	ops     []op
	weights []string
}

type op struct {
	name string
	run  func() error
}

var _ Runtime = (*GraphExecutor)(nil)

// NewGraphExecutor returns an uninitialized executor.
func NewGraphExecutor() *GraphExecutor {
	return &GraphExecutor{}
}

// Init parses the topology, allocates storage and binds every operator node
// to its kernel.
func (e *GraphExecutor) Init(graphJSON []byte, mod Module, devs ...Device) error {
	g, err := ParseGraph(graphJSON)
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		devs = []Device{CPU}
	}

	e.graph = g
	e.module = mod
	e.devices = devs
	e.weights = nil

	if err := e.setupStorage(); err != nil {
		return err
	}
	return e.setupOps()
}

func (e *GraphExecutor) setupStorage() error {
	g := e.graph
	n := g.NumEntries()

	dtypes := make([]DataType, n)
	var sizes []int64
	for eid := range n {
		dt, err := ParseDataType(g.Attrs.DLType[eid])
		if err != nil {
			return fmt.Errorf("entry %d: %w", eid, err)
		}
		dtypes[eid] = dt

		sid := g.Attrs.StorageID[eid]
		if sid < 0 || sid >= n {
			return fmt.Errorf("%w: entry %d has storage id %d", ErrInvalidGraph, eid, sid)
		}
		for len(sizes) <= sid {
			sizes = append(sizes, 0)
		}

		bytes, ok := checkedBytes(g.Attrs.Shape[eid], int64(dt.Size()))
		if !ok {
			return fmt.Errorf("%w: entry %d has invalid shape %v", ErrInvalidGraph, eid, g.Attrs.Shape[eid])
		}
		sizes[sid] = max(sizes[sid], bytes)
	}

	e.pool = make([][]byte, len(sizes))
	for sid, size := range sizes {
		e.pool[sid] = make([]byte, size)
	}

	e.entries = make([]*NDArray, n)
	for eid := range n {
		shape := g.Attrs.Shape[eid]
		dt := dtypes[eid]
		size := numElements(shape) * int64(dt.Size())

		e.entries[eid] = &NDArray{
			Data:   e.pool[g.Attrs.StorageID[eid]][:size:size],
			Shape:  slices.Clone(shape),
			DType:  dt,
			Device: e.deviceFor(eid),
		}
	}

	slog.Debug("Graph storage planned", "entries", n, "buffers", len(e.pool))
	return nil
}

func (e *GraphExecutor) deviceFor(eid int) Device {
	idx := e.graph.Attrs.DeviceIndex
	if eid < len(idx) {
		for _, d := range e.devices {
			if int(d.Type) == idx[eid] {
				return d
			}
		}
	}
	return e.devices[0]
}

func (e *GraphExecutor) setupOps() error {
	g := e.graph
	e.ops = e.ops[:0]

	for nid := range g.Nodes {
		node := &g.Nodes[nid]
		if node.Op == opNull {
			continue
		}
		if node.Op != opTVM {
			return fmt.Errorf("%w: node %s has unsupported op %q", ErrInvalidGraph, node.Name, node.Op)
		}

		args := make([]*NDArray, 0, len(node.Inputs)+node.NumOutputs())
		for _, in := range node.Inputs {
			args = append(args, e.entries[g.EntryID(in.NodeID, in.Index)])
		}
		for i := range g.NodeRowPtr[nid+1] - g.NodeRowPtr[nid] {
			args = append(args, e.entries[g.EntryID(nid, i)])
		}

		funcName, _ := node.Attr("func_name")
		switch funcName {
		case funcNop:
			continue
		case funcCopy:
			if len(args) != 2 {
				return fmt.Errorf("%w: node %s copies %d tensors", ErrInvalidGraph, node.Name, len(args))
			}
			src, dst := args[0], args[1]
			e.ops = append(e.ops, op{name: node.Name, run: func() error { return dst.CopyFrom(src) }})
			continue
		}

		if e.module == nil {
			return fmt.Errorf("%w: %s needed by node %s, no module loaded", ErrFuncNotFound, funcName, node.Name)
		}
		fn, ok := e.module.Function(funcName)
		if !ok {
			return fmt.Errorf("%w: %s needed by node %s", ErrFuncNotFound, funcName, node.Name)
		}

		e.ops = append(e.ops, op{name: node.Name, run: func() error { return fn(args) }})
	}

	return nil
}

// LoadParams copies every blob tensor whose name matches a graph input into
// that input. Names unknown to the graph are skipped. The matched names are
// reported by WeightNames in blob order.
func (e *GraphExecutor) LoadParams(blob []byte) error {
	if e.graph == nil {
		return ErrNotInitialized
	}

	params, err := LoadParamsBlob(blob)
	if err != nil {
		return err
	}

	for _, p := range params {
		in := e.InputIndex(p.Name)
		if in < 0 {
			slog.Debug("Skipping param not used by the graph", "name", p.Name)
			continue
		}

		if err := e.Input(in).CopyFrom(p.Array); err != nil {
			return fmt.Errorf("load param %q: %w", p.Name, err)
		}
		if !slices.Contains(e.weights, p.Name) {
			e.weights = append(e.weights, p.Name)
		}
	}

	return nil
}

// NumInputs returns the number of graph inputs, weights included.
func (e *GraphExecutor) NumInputs() int {
	if e.graph == nil {
		return 0
	}
	return len(e.graph.ArgNodes)
}

// InputName returns the name of input i, or "" when i is out of range.
func (e *GraphExecutor) InputName(i int) string {
	if i < 0 || i >= e.NumInputs() {
		return ""
	}
	return e.graph.Nodes[e.graph.ArgNodes[i]].Name
}

// InputIndex returns the input position of name, or -1.
func (e *GraphExecutor) InputIndex(name string) int {
	for i := range e.NumInputs() {
		if e.InputName(i) == name {
			return i
		}
	}
	return -1
}

// WeightNames returns the names bound by LoadParams.
func (e *GraphExecutor) WeightNames() []string {
	return slices.Clone(e.weights)
}

// Input returns the runtime-owned tensor of input i, or nil when out of range.
func (e *GraphExecutor) Input(i int) *NDArray {
	if i < 0 || i >= e.NumInputs() {
		return nil
	}
	return e.entries[e.graph.EntryID(e.graph.ArgNodes[i], 0)]
}

// SetInput copies src into input i.
func (e *GraphExecutor) SetInput(i int, src *NDArray) error {
	dst := e.Input(i)
	if dst == nil {
		return fmt.Errorf("%w: input %d of %d", ErrIndexOutOfRange, i, e.NumInputs())
	}
	return dst.CopyFrom(src)
}

// NumOutputs returns the number of graph outputs.
func (e *GraphExecutor) NumOutputs() int {
	if e.graph == nil {
		return 0
	}
	return len(e.graph.Heads)
}

// Output returns the runtime-owned tensor of output i, or nil when out of range.
func (e *GraphExecutor) Output(i int) *NDArray {
	if i < 0 || i >= e.NumOutputs() {
		return nil
	}
	h := e.graph.Heads[i]
	return e.entries[e.graph.EntryID(h.NodeID, h.Index)]
}

// GetOutput copies output i into dst.
func (e *GraphExecutor) GetOutput(i int, dst *NDArray) error {
	src := e.Output(i)
	if src == nil {
		return fmt.Errorf("%w: output %d of %d", ErrIndexOutOfRange, i, e.NumOutputs())
	}
	return src.CopyTo(dst)
}

// Run executes every operator node in topological order.
func (e *GraphExecutor) Run() error {
	if e.graph == nil {
		return ErrNotInitialized
	}

	for _, o := range e.ops {
		if err := o.run(); err != nil {
			return fmt.Errorf("run node %s: %w", o.name, err)
		}
	}
	return nil
}
