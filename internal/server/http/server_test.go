package http

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/backend/tvm"
	"github.com/ekisa-team/dlrshim/internal/config"
	"github.com/ekisa-team/dlrshim/internal/envvar"
	"github.com/ekisa-team/dlrshim/internal/graphrt/graphrttest"
	"github.com/ekisa-team/dlrshim/internal/model"
	"github.com/ekisa-team/dlrshim/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv(envvar.DlrshimModelsPath, "")

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "affine"), 0o755))
	graphrttest.WriteModel(t, filepath.Join(dir, "affine"))

	backends := backend.NewRegistry(nil)
	require.NoError(t, tvm.Register(backends, tvm.NewLoader(nil, &graphrttest.Engine{})))

	var mc config.ModelConfig
	mc.SetLocalSource(config.LocalSource{Path: "affine"})

	mgr := model.NewManager(backends)
	t.Cleanup(func() { mgr.Close() })
	require.NoError(t, mgr.LoadModelsFromConfig(context.Background(), &config.Config{
		Storage: config.StorageConfig{ModelsDir: dir},
		Models:  map[string]config.ModelConfig{"affine": mc},
	}))

	ts := httptest.NewServer(NewServer(":0", service.NewInference(mgr)).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_Healthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body healthResponseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Models)
}

func TestServer_ListModels(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body ListModelsResponseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Models, 1)
	assert.Equal(t, "affine", body.Models[0].ID)
}

func TestServer_DescribeModel(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/models/affine")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body service.Description
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Inputs, 1)
	assert.Equal(t, "data", body.Inputs[0].Name)
	assert.Len(t, body.Outputs, 2)

	resp404, err := http.Get(ts.URL + "/v1/models/missing")
	require.NoError(t, err)
	defer resp404.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
}

func TestServer_Predict(t *testing.T) {
	ts := newTestServer(t)

	data := []float32{1, 2, 3, 4}
	want0, want1 := graphrttest.Expected(data)

	payload, err := json.Marshal(PredictRequestDTO{Inputs: map[string]service.Tensor{
		"data": {Shape: []int64{1, 4}, Data: data},
	}})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/v1/models/affine/predict", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p service.Prediction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	require.Len(t, p.Outputs, 2)
	assert.InDeltaSlice(t, want0, p.Outputs[0].Data, 1e-6)
	assert.InDelta(t, want1, p.Outputs[1].Data[0], 1e-6)
}

func TestServer_PredictErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed json", "/v1/models/affine/predict", "{", http.StatusBadRequest},
		{"unknown field", "/v1/models/affine/predict", `{"input": {}}`, http.StatusBadRequest},
		{"unknown input", "/v1/models/affine/predict", `{"inputs": {"nope": {"shape": [1, 4], "data": [1, 2, 3, 4]}}}`, http.StatusBadRequest},
		{"surplus data", "/v1/models/affine/predict", `{"inputs": {"data": {"data": [1, 2, 3, 4, 5, 6, 7, 8]}}}`, http.StatusBadRequest},
		{"short data", "/v1/models/affine/predict", `{"inputs": {"data": {"shape": [1, 4], "data": [1]}}}`, http.StatusBadRequest},
		{"unknown model", "/v1/models/missing/predict", `{"inputs": {"data": {"data": [1]}}}`, http.StatusNotFound},
		{"no inputs", "/v1/models/affine/predict", `{"inputs": {}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body ErrorResponseDTO
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)

	_, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "dlrshim_http_requests_total")
	assert.Contains(t, buf.String(), "dlrshim_models_loaded")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", service.NewInference(model.NewManager(backend.NewRegistry(nil))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}

func TestWriteJSON_NonFiniteOutput(t *testing.T) {
	rec := httptest.NewRecorder()

	writeJSON(rec, http.StatusOK, service.Prediction{
		ModelID: "affine",
		Outputs: []service.Tensor{{Shape: []int64{2}, Data: []float32{1, float32(math.NaN())}}},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "encode response")
}
