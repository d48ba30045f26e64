// Package graphrttest provides a small compiled graph for tests: one data
// input, two weights, and two outputs computed by in-process kernels.
//
//	out0 = (data + bias) * scale    shape [1 4]
//	out1 = sum(out0)                shape [1]
package graphrttest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/ekisa-team/dlrshim/internal/graphrt"
)

// Fixture values.
var (
	InputShape = []int64{1, 4}
	Bias       = []float32{1, 2, 3, 4}
	Scale      = []float32{2, 2, 2, 2}
)

// Graph returns the fixture topology.
func Graph() *graphrt.Graph {
	null := func(name string) graphrt.Node {
		return graphrt.Node{Op: "null", Name: name, Inputs: []graphrt.NodeEntry{}}
	}
	op := func(name string, inputs ...int) graphrt.Node {
		n := graphrt.Node{
			Op:   "tvm_op",
			Name: name,
			Attrs: map[string]any{
				"func_name":    name,
				"num_inputs":   strconv.Itoa(len(inputs)),
				"num_outputs":  "1",
				"flatten_data": "0",
			},
		}
		for _, in := range inputs {
			n.Inputs = append(n.Inputs, graphrt.NodeEntry{NodeID: in})
		}
		return n
	}

	return &graphrt.Graph{
		Nodes: []graphrt.Node{
			null("data"),
			null("bias"),
			null("scale"),
			op("fused_add", 0, 1),
			op("fused_multiply", 3, 2),
			op("fused_sum", 4),
		},
		ArgNodes:   []int{0, 1, 2},
		Heads:      []graphrt.NodeEntry{{NodeID: 4}, {NodeID: 5}},
		NodeRowPtr: []int{0, 1, 2, 3, 4, 5, 6},
		Attrs: graphrt.GraphAttrs{
			Shape:     [][]int64{{1, 4}, {1, 4}, {1, 4}, {1, 4}, {1, 4}, {1}},
			DLType:    []string{"float32", "float32", "float32", "float32", "float32", "float32"},
			StorageID: []int{0, 1, 2, 3, 4, 5},
		},
	}
}

// GraphJSON returns the serialized fixture topology.
func GraphJSON(t testing.TB) []byte {
	t.Helper()

	data, err := json.Marshal(Graph())
	if err != nil {
		t.Fatalf("marshal graph: %v", err)
	}
	return data
}

// ParamsBlob returns the serialized fixture weights.
func ParamsBlob(t testing.TB) []byte {
	t.Helper()

	blob, err := graphrt.SaveParamsBlob([]graphrt.Param{
		{Name: "bias", Array: float32Array(t, Bias)},
		{Name: "scale", Array: float32Array(t, Scale)},
	})
	if err != nil {
		t.Fatalf("save params: %v", err)
	}
	return blob
}

// Module returns the kernels referenced by the fixture topology.
func Module() graphrt.FuncModule {
	return graphrt.FuncModule{
		"fused_add":      elementwise(func(a, b float32) float32 { return a + b }),
		"fused_multiply": elementwise(func(a, b float32) float32 { return a * b }),
		"fused_sum": func(args []*graphrt.NDArray) error {
			in := make([]float32, args[0].NumElements())
			if err := args[0].ReadFloat32(in); err != nil {
				return err
			}
			var sum float32
			for _, v := range in {
				sum += v
			}
			return args[1].WriteFloat32([]float32{sum})
		},
	}
}

// Expected computes the fixture outputs for data.
func Expected(data []float32) (out0 []float32, out1 float32) {
	out0 = make([]float32, len(data))
	for i, v := range data {
		out0[i] = (v + Bias[i]) * Scale[i]
		out1 += out0[i]
	}
	return out0, out1
}

// WriteModel writes model.json, model.params and a placeholder compiled
// library for each host platform into dir. Pair it with Engine.
func WriteModel(t testing.TB, dir string) {
	t.Helper()

	files := map[string][]byte{
		"model.json":   GraphJSON(t),
		"model.so":     []byte("\x7fELF"),
		"model.dylib":  []byte("\xcf\xfa\xed\xfe"),
		"model.dll":    []byte("MZ"),
		"model.params": ParamsBlob(t),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// Engine serves Module for every library path and counts the loads.
type Engine struct {
	Loads atomic.Int32
}

var _ graphrt.Engine = (*Engine)(nil)

// LoadModule returns the fixture kernels.
func (e *Engine) LoadModule(string) (graphrt.Module, error) {
	e.Loads.Add(1)
	return Module(), nil
}

// NewRuntime returns a GraphExecutor.
func (e *Engine) NewRuntime() graphrt.Runtime {
	return graphrt.NewGraphExecutor()
}

func elementwise(f func(a, b float32) float32) graphrt.Func {
	return func(args []*graphrt.NDArray) error {
		n := args[0].NumElements()
		a, b := make([]float32, n), make([]float32, n)
		if err := args[0].ReadFloat32(a); err != nil {
			return err
		}
		if err := args[1].ReadFloat32(b); err != nil {
			return err
		}
		for i := range a {
			a[i] = f(a[i], b[i])
		}
		return args[2].WriteFloat32(a)
	}
}

func float32Array(t testing.TB, values []float32) *graphrt.NDArray {
	t.Helper()

	arr := graphrt.NewNDArray([]int64{1, int64(len(values))}, graphrt.Float32, graphrt.CPU)
	if err := arr.WriteFloat32(values); err != nil {
		t.Fatalf("write array: %v", err)
	}
	return arr
}
