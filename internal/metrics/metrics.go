// Package metrics holds the Prometheus collectors for model loading and
// inference.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekisa-team/dlrshim/internal/backend"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlrshim_model_loads_total",
			Help: "Total number of model loads by backend and outcome.",
		},
		[]string{"backend", "status"},
	)

	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dlrshim_model_load_seconds",
			Help:    "Duration of a model load, artifact reads included, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	modelsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dlrshim_models_loaded",
			Help: "Number of models currently loaded and serving.",
		},
	)

	inferencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlrshim_inferences_total",
			Help: "Total number of inference calls by model and outcome.",
		},
		[]string{"model", "status"},
	)

	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dlrshim_inference_seconds",
			Help:    "Duration of an inference call, input binding and output copies included, in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(modelLoadsTotal)
	prometheus.MustRegister(modelLoadDuration)
	prometheus.MustRegister(modelsLoaded)
	prometheus.MustRegister(inferencesTotal)
	prometheus.MustRegister(inferenceDuration)

	for _, k := range backend.Kinds {
		modelLoadsTotal.WithLabelValues(k.String(), StatusOK)
		modelLoadsTotal.WithLabelValues(k.String(), StatusError)
	}
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// ObserveLoad records one model load.
func ObserveLoad(kind backend.Kind, d time.Duration, err error) {
	modelLoadsTotal.WithLabelValues(kind.String(), status(err)).Inc()
	if err == nil {
		modelLoadDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
	}
}

// SetModelsLoaded sets the number of loaded models.
func SetModelsLoaded(n int) {
	modelsLoaded.Set(float64(n))
}

// ObserveInference records one inference call.
func ObserveInference(modelID string, d time.Duration, err error) {
	inferencesTotal.WithLabelValues(modelID, status(err)).Inc()
	inferenceDuration.WithLabelValues(modelID).Observe(d.Seconds())
}

// DeleteModel drops the per-model series of a model that is no longer served.
func DeleteModel(modelID string) {
	inferencesTotal.DeletePartialMatch(prometheus.Labels{"model": modelID})
	inferenceDuration.DeletePartialMatch(prometheus.Labels{"model": modelID})
}
