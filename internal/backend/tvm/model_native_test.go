//go:build cgo && linux

package tvm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/dlrshim/internal/graphrt"
	"github.com/ekisa-team/dlrshim/internal/graphrt/graphrttest"
)

// writeAddModel writes out = x + bias, with bias stored as a weight.
func writeAddModel(t *testing.T, dir string, funcName string) {
	t.Helper()

	g := &graphrt.Graph{
		Nodes: []graphrt.Node{
			{Op: "null", Name: "x"},
			{Op: "null", Name: "bias"},
			{
				Op:     "tvm_op",
				Name:   "add",
				Inputs: []graphrt.NodeEntry{{NodeID: 0}, {NodeID: 1}},
				Attrs:  map[string]any{"func_name": funcName, "num_inputs": "2", "num_outputs": "1"},
			},
		},
		ArgNodes: []int{0, 1},
		Heads:    []graphrt.NodeEntry{{NodeID: 2}},
		Attrs: graphrt.GraphAttrs{
			Shape:     [][]int64{{1, 4}, {1, 4}, {1, 4}},
			DLType:    []string{"float32", "float32", "float32"},
			StorageID: []int{0, 1, 2},
		},
	}
	graphJSON, err := json.Marshal(g)
	require.NoError(t, err)

	bias := graphrt.NewNDArray([]int64{1, 4}, graphrt.Float32, graphrt.CPU)
	require.NoError(t, bias.WriteFloat32([]float32{0.5, 1, 1.5, 2}))
	params, err := graphrt.SaveParamsBlob([]graphrt.Param{{Name: "bias", Array: bias}})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.json"), graphJSON, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.params"), params, 0o644))
}

func TestLoad_NativeLibrary(t *testing.T) {
	dir := t.TempDir()
	graphrttest.BuildKernelLibrary(t, dir)
	writeAddModel(t, dir, graphrttest.AddKernel)

	m, err := NewLoader(nil, nil).Load(dir)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "kernels.so", filepath.Base(m.Paths().Lib))
	assert.NotNil(t, m.module)
	assert.Equal(t, []string{"x"}, m.InputNames())
	assert.Equal(t, []string{"bias"}, m.WeightNames())

	require.NoError(t, m.SetInput("x", []int64{1, 4}, []float32{1, 2, 3, 4}))
	require.NoError(t, m.Run())

	out := make([]float32, 4)
	require.NoError(t, m.GetOutput(0, out))
	assert.Equal(t, []float32{1.5, 3, 4.5, 6}, out)

	require.NoError(t, m.Close())
	assert.Nil(t, m.module)
	assert.ErrorIs(t, m.Run(), graphrt.ErrNotInitialized)
}

func TestLoad_NativeLibraryMissingKernel(t *testing.T) {
	dir := t.TempDir()
	graphrttest.BuildKernelLibrary(t, dir)
	writeAddModel(t, dir, "fused_multiply")

	_, err := NewLoader(nil, nil).Load(dir)
	assert.ErrorIs(t, err, graphrt.ErrFuncNotFound)
}

func TestLoad_EmptyLibraryDefaultEngine(t *testing.T) {
	dir := t.TempDir()
	writeAddModel(t, dir, "__nop")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.so"), nil, 0o644))

	m, err := NewLoader(nil, nil).Load(dir)
	require.NoError(t, err)
	defer m.Close()

	assert.Nil(t, m.module)
	require.NoError(t, m.SetInput("x", []int64{1, 4}, []float32{1, 2, 3, 4}))
	assert.NoError(t, m.Run())
}
