// Package tvm implements the graph-runtime backend: a compiled graph
// topology, a parameter blob and a native operator library exported side by
// side in one directory.
package tvm

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/graphrt"
	"github.com/ekisa-team/dlrshim/internal/xfs"
)

// BackendName identifies models loaded by this package.
const BackendName = "tvm"

// Loader loads graph models. Directories are listed through its FileSystem;
// artifacts are read from the local filesystem.
type Loader struct {
	fsys   xfs.FileSystem
	engine graphrt.Engine
}

// NewLoader returns a Loader. Nil arguments select xfs.Default and
// graphrt.DefaultEngine.
func NewLoader(fsys xfs.FileSystem, engine graphrt.Engine) *Loader {
	if fsys == nil {
		fsys = xfs.Default
	}
	if engine == nil {
		engine = graphrt.DefaultEngine{}
	}
	return &Loader{fsys: fsys, engine: engine}
}

// Register installs l as the tvm loader of reg.
func Register(reg *backend.Registry, l *Loader) error {
	return reg.Register(backend.KindTVM, func(path string) (backend.Model, error) {
		m, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

// Load loads the graph model in dir with the default loader.
func Load(dir string) (*Model, error) {
	return NewLoader(nil, nil).Load(dir)
}

// Model is one loaded graph model.
type Model struct {
	paths   ModelPath
	version Version

	module graphrt.Module
	rt     graphrt.Runtime

	inputNames  []string
	weightNames []string
	outputs     []graphrt.TensorInfo
}

var _ backend.Model = (*Model)(nil)

// Load resolves the artifacts in dir, loads the compiled library unless it is
// empty, initializes a runtime on the CPU and binds the parameter blob.
func (l *Loader) Load(dir string) (*Model, error) {
	paths, err := ResolvePaths(l.fsys, dir)
	if err != nil {
		return nil, err
	}

	graphJSON, err := xfs.ReadFile(paths.Graph)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	params, err := xfs.ReadFile(paths.Params)
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}

	m := &Model{paths: paths}

	if paths.Version != "" {
		if m.version, err = ReadVersion(paths.Version); err != nil {
			slog.Warn("Ignoring unreadable version descriptor", "path", paths.Version, "error", err)
		}
	}

	empty, err := xfs.IsFileEmpty(paths.Lib)
	if err != nil {
		return nil, fmt.Errorf("stat library: %w", err)
	}
	if !empty {
		if m.module, err = l.engine.LoadModule(paths.Lib); err != nil {
			return nil, fmt.Errorf("load library %s: %w", paths.Lib, err)
		}
	}

	if err := m.setup(l.engine.NewRuntime(), graphJSON, params); err != nil {
		m.Close()
		return nil, err
	}

	slog.Info("Graph model loaded",
		"path", dir,
		"inputs", len(m.inputNames),
		"weights", len(m.weightNames),
		"outputs", len(m.outputs),
		"native_lib", m.module != nil,
	)

	return m, nil
}

func (m *Model) setup(rt graphrt.Runtime, graphJSON, params []byte) error {
	if err := rt.Init(graphJSON, m.module, graphrt.CPU); err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	if err := rt.LoadParams(params); err != nil {
		return fmt.Errorf("load params: %w", err)
	}
	m.rt = rt

	// Runtime inputs cover data inputs and weights alike.
	all := make([]string, rt.NumInputs())
	for i := range all {
		all[i] = rt.InputName(i)
	}
	slices.Sort(all)

	m.weightNames = rt.WeightNames()
	slices.Sort(m.weightNames)

	m.inputNames = m.inputNames[:0]
	for _, name := range all {
		if _, found := slices.BinarySearch(m.weightNames, name); !found {
			m.inputNames = append(m.inputNames, name)
		}
	}

	m.outputs = make([]graphrt.TensorInfo, rt.NumOutputs())
	for i := range m.outputs {
		m.outputs[i] = rt.Output(i).Info()
	}

	return nil
}

// Backend returns "tvm".
func (m *Model) Backend() string { return BackendName }

// Paths returns the resolved artifact paths.
func (m *Model) Paths() ModelPath { return m.paths }

// Version returns the parsed version.json, or the zero Version.
func (m *Model) Version() Version { return m.version }

func (m *Model) NumInputs() int  { return len(m.inputNames) }
func (m *Model) NumWeights() int { return len(m.weightNames) }
func (m *Model) NumOutputs() int { return len(m.outputs) }

// InputName returns the i-th pure input name in sorted order.
func (m *Model) InputName(i int) (string, error) {
	if i < 0 || i >= len(m.inputNames) {
		return "", fmt.Errorf("%w: input %d of %d", backend.ErrIndexOutOfRange, i, len(m.inputNames))
	}
	return m.inputNames[i], nil
}

// WeightName returns the i-th weight name in sorted order.
func (m *Model) WeightName(i int) (string, error) {
	if i < 0 || i >= len(m.weightNames) {
		return "", fmt.Errorf("%w: weight %d of %d", backend.ErrIndexOutOfRange, i, len(m.weightNames))
	}
	return m.weightNames[i], nil
}

// InputNames returns a copy of the pure input names.
func (m *Model) InputNames() []string { return slices.Clone(m.inputNames) }

// WeightNames returns a copy of the weight names.
func (m *Model) WeightNames() []string { return slices.Clone(m.weightNames) }

func (m *Model) slot(name string) (int, *graphrt.NDArray, error) {
	if m.rt == nil {
		return -1, nil, graphrt.ErrNotInitialized
	}

	idx := m.rt.InputIndex(name)
	if idx < 0 {
		return -1, nil, fmt.Errorf("%w: %q", backend.ErrInputNotFound, name)
	}
	return idx, m.rt.Input(idx), nil
}

// InputInfo returns the shape and dtype of a named input or weight.
func (m *Model) InputInfo(name string) (graphrt.TensorInfo, error) {
	_, in, err := m.slot(name)
	if err != nil {
		return graphrt.TensorInfo{}, err
	}
	return in.Info(), nil
}

// SetInput converts data to the slot's dtype and copies it into the named
// input. The product of shape must equal the slot's element count exactly.
func (m *Model) SetInput(name string, shape []int64, data []float32) error {
	idx, in, err := m.slot(name)
	if err != nil {
		return err
	}

	if slices.ContainsFunc(shape, func(d int64) bool { return d < 0 }) {
		return fmt.Errorf("%w: input %q got negative shape %v", backend.ErrSizeMismatch, name, shape)
	}

	readSize := product(shape)
	expected := in.NumElements()
	if readSize != expected {
		return fmt.Errorf("%w: input %q has %d elements, got shape %v (%d)",
			backend.ErrSizeMismatch, name, expected, shape, readSize)
	}

	lanes := int64(max(in.DType.Lanes, 1))
	if int64(len(data)) != expected*lanes {
		return fmt.Errorf("%w: input %q needs %d values, got %d",
			backend.ErrSizeMismatch, name, expected*lanes, len(data))
	}

	tmp := graphrt.NewNDArray(shape, in.DType, graphrt.CPU)
	if err := tmp.WriteFloat32(data); err != nil {
		return sizeErr(err)
	}

	return m.rt.SetInput(idx, tmp)
}

// GetInput copies the current content of the named input into out.
func (m *Model) GetInput(name string, out []float32) error {
	_, in, err := m.slot(name)
	if err != nil {
		return err
	}
	return sizeErr(in.ReadFloat32(out))
}

// Run executes the whole graph.
func (m *Model) Run() error {
	if m.rt == nil {
		return graphrt.ErrNotInitialized
	}
	return m.rt.Run()
}

// OutputInfo returns the load-time shape and dtype of output i.
func (m *Model) OutputInfo(i int) (graphrt.TensorInfo, error) {
	if i < 0 || i >= len(m.outputs) {
		return graphrt.TensorInfo{}, fmt.Errorf("%w: output %d of %d", backend.ErrIndexOutOfRange, i, len(m.outputs))
	}
	info := m.outputs[i]
	info.Shape = slices.Clone(info.Shape)
	return info, nil
}

// OutputShape returns a copy of the shape of output i.
func (m *Model) OutputShape(i int) ([]int64, error) {
	info, err := m.OutputInfo(i)
	if err != nil {
		return nil, err
	}
	return info.Shape, nil
}

// OutputSizeDim returns the element count and rank of output i.
func (m *Model) OutputSizeDim(i int) (int64, int, error) {
	if i < 0 || i >= len(m.outputs) {
		return 0, 0, fmt.Errorf("%w: output %d of %d", backend.ErrIndexOutOfRange, i, len(m.outputs))
	}
	info := m.outputs[i]
	return product(info.Shape), info.Ndim(), nil
}

// GetOutput copies output i into out, converted to float32.
func (m *Model) GetOutput(i int, out []float32) error {
	if m.rt == nil {
		return graphrt.ErrNotInitialized
	}

	info, err := m.OutputInfo(i)
	if err != nil {
		return err
	}

	tmp := graphrt.NewNDArray(info.Shape, info.DType, graphrt.CPU)
	if err := m.rt.GetOutput(i, tmp); err != nil {
		return err
	}
	return sizeErr(tmp.ReadFloat32(out))
}

// Close releases the compiled library. The model is unusable afterwards.
func (m *Model) Close() error {
	m.rt = nil
	if m.module == nil {
		return nil
	}

	err := m.module.Close()
	m.module = nil
	return err
}

func product(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// sizeErr tags short caller buffers as size mismatches.
func sizeErr(err error) error {
	if errors.Is(err, graphrt.ErrBufferTooSmall) {
		return fmt.Errorf("%w: %w", backend.ErrSizeMismatch, err)
	}
	return err
}
