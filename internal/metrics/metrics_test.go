package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/dlrshim/internal/backend"
)

func TestMetricsRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}

	// Histograms and labeled vectors without observations are not gathered.
	for _, name := range []string{"dlrshim_model_loads_total", "dlrshim_models_loaded"} {
		assert.True(t, found[name], "metric %q not registered", name)
	}
}

func TestObserveLoad(t *testing.T) {
	before := testutil.ToFloat64(modelLoadsTotal.WithLabelValues("tvm", StatusError))

	ObserveLoad(backend.KindTVM, time.Second, errors.New("boom"))
	ObserveLoad(backend.KindTVM, 2*time.Second, nil)

	assert.Equal(t, before+1, testutil.ToFloat64(modelLoadsTotal.WithLabelValues("tvm", StatusError)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(modelLoadsTotal.WithLabelValues("tvm", StatusOK)), 1.0)
}

func TestObserveInference(t *testing.T) {
	ObserveInference("m-test", time.Millisecond, nil)
	ObserveInference("m-test", time.Millisecond, nil)
	ObserveInference("m-test", time.Millisecond, errors.New("size"))

	assert.Equal(t, 2.0, testutil.ToFloat64(inferencesTotal.WithLabelValues("m-test", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(inferencesTotal.WithLabelValues("m-test", StatusError)))

	DeleteModel("m-test")
	// The series starts over once the model is served again.
	assert.Equal(t, 0.0, testutil.ToFloat64(inferencesTotal.WithLabelValues("m-test", StatusOK)))
}

func TestSetModelsLoaded(t *testing.T) {
	SetModelsLoaded(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(modelsLoaded))
}
