package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/backend/tvm"
	"github.com/ekisa-team/dlrshim/internal/graphrt/graphrttest"
	"github.com/ekisa-team/dlrshim/internal/service"
)

func setup(t *testing.T) string {
	t.Helper()

	prev := newBackends
	newBackends = func() (*backend.Registry, error) {
		reg := backend.NewRegistry(nil)
		if err := tvm.Register(reg, tvm.NewLoader(nil, &graphrttest.Engine{})); err != nil {
			return nil, err
		}
		return reg, nil
	}
	t.Cleanup(func() { newBackends = prev })

	dir := t.TempDir()
	graphrttest.WriteModel(t, dir)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDetect(t *testing.T) {
	dir := setup(t)

	out, err := execute(t, "detect", dir)
	require.NoError(t, err)
	assert.Equal(t, "tvm\n", out)

	out, err = execute(t, "detect", filepath.Join(dir, "model.tflite"))
	require.NoError(t, err)
	assert.Equal(t, "tflite\n", out)
}

func TestInspect(t *testing.T) {
	dir := setup(t)

	out, err := execute(t, "inspect", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "backend: tvm")
	assert.Contains(t, out, "ROLE")
	assert.Contains(t, out, "input")
	assert.Contains(t, out, "data")
	assert.Contains(t, out, "weight")
	assert.Contains(t, out, "output")
	assert.Contains(t, out, "(1, 4)")
}

func TestRun(t *testing.T) {
	dir := setup(t)

	data := []float32{1, 2, 3, 4}
	want0, want1 := graphrttest.Expected(data)

	inputs, err := json.Marshal(map[string]service.Tensor{"data": {Shape: []int64{1, 4}, Data: data}})
	require.NoError(t, err)
	inputsPath := filepath.Join(t.TempDir(), "inputs.json")
	require.NoError(t, os.WriteFile(inputsPath, inputs, 0o644))

	out, err := execute(t, "run", dir, "--inputs", inputsPath)
	require.NoError(t, err)

	var got struct {
		Outputs []service.Tensor `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Outputs, 2)
	assert.InDeltaSlice(t, want0, got.Outputs[0].Data, 1e-6)
	assert.InDelta(t, want1, got.Outputs[1].Data[0], 1e-6)
}

func TestRun_Errors(t *testing.T) {
	dir := setup(t)

	_, err := execute(t, "run", dir)
	assert.Error(t, err, "missing --inputs")

	_, err = execute(t, "run", dir, "--inputs", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	badPath := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"data": {"shape": [1, 4], "data": [1]}}`), 0o644))
	_, err = execute(t, "run", dir, "--inputs", badPath)
	assert.ErrorIs(t, err, backend.ErrSizeMismatch)
}
