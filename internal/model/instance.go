package model

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/config"
	"github.com/ekisa-team/dlrshim/internal/metrics"
)

// ModelStatus is the lifecycle state of a model instance.
type ModelStatus string

const (
	ModelStatusUnloaded ModelStatus = "unloaded"
	ModelStatusLoading  ModelStatus = "loading"
	ModelStatusLoaded   ModelStatus = "loaded"
	ModelStatusFailed   ModelStatus = "failed"
)

// Instance is one configured model and, once loaded, its backend model.
type Instance struct {
	ID     string
	Config config.ModelConfig

	// use serializes calls into the backend model.
	use sync.Mutex

	mu         sync.RWMutex
	instanceID ulid.ULID
	path       string
	status     ModelStatus
	kind       backend.Kind
	model      backend.Model
	loadedAt   time.Time
	err        error
}

// Info is a point-in-time view of an Instance.
type Info struct {
	ID         string       `json:"id"`
	InstanceID string       `json:"instance_id,omitempty"`
	Path       string       `json:"path,omitempty"`
	Status     ModelStatus  `json:"status"`
	Backend    backend.Kind `json:"backend,omitempty"`
	Tags       []string     `json:"tags,omitempty"`
	LoadedAt   *time.Time   `json:"loaded_at,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// NewInstance creates an unloaded instance.
func NewInstance(id string, cfg config.ModelConfig) *Instance {
	return &Instance{
		ID:     id,
		Config: cfg,
		status: ModelStatusUnloaded,
	}
}

// SetStatus sets the lifecycle status.
func (i *Instance) SetStatus(status ModelStatus) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = status
}

// Status returns the lifecycle status.
func (i *Instance) Status() ModelStatus {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.status
}

// Err returns the error of the last failed load.
func (i *Instance) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.err
}

// Kind returns the backend kind of the loaded model.
func (i *Instance) Kind() backend.Kind {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.kind
}

// Info returns a snapshot of the instance.
func (i *Instance) Info() Info {
	i.mu.RLock()
	defer i.mu.RUnlock()

	info := Info{
		ID:      i.ID,
		Path:    i.path,
		Status:  i.status,
		Backend: i.kind,
		Tags:    i.Config.Tags,
	}
	if i.instanceID != (ulid.ULID{}) {
		info.InstanceID = i.instanceID.String()
	}
	if !i.loadedAt.IsZero() {
		t := i.loadedAt
		info.LoadedAt = &t
	}
	if i.err != nil {
		info.Error = i.err.Error()
	}
	return info
}

// Fail marks the instance as failed.
func (i *Instance) Fail(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = ModelStatusFailed
	i.err = err
}

// Load loads the model at path through backends. The configured backend, if
// any, overrides detection.
func (i *Instance) Load(backends *backend.Registry, path string) error {
	i.mu.Lock()
	i.status = ModelStatusLoading
	i.path = path
	i.err = nil
	i.mu.Unlock()

	start := time.Now()

	var (
		m    backend.Model
		kind backend.Kind
		err  error
	)
	if i.Config.Backend != "" {
		if kind, err = backend.ParseKind(i.Config.Backend); err == nil {
			m, err = backends.LoadAs(kind, path)
		}
	} else {
		m, kind, err = backends.Load(path)
	}

	metrics.ObserveLoad(kind, time.Since(start), err)

	i.mu.Lock()
	defer i.mu.Unlock()

	i.kind = kind
	if err != nil {
		i.status = ModelStatusFailed
		i.err = fmt.Errorf("model %s: %w", i.ID, err)
		return i.err
	}

	i.model = m
	i.instanceID = ulid.Make()
	i.loadedAt = time.Now()
	i.status = ModelStatusLoaded

	slog.Info("Model loaded", "model_id", i.ID, "backend", kind, "path", path, "duration", time.Since(start))
	return nil
}

// Use calls fn with the backend model while holding the instance lock.
func (i *Instance) Use(fn func(backend.Model) error) error {
	i.use.Lock()
	defer i.use.Unlock()

	i.mu.RLock()
	m, status := i.model, i.status
	i.mu.RUnlock()

	if status != ModelStatusLoaded || m == nil {
		return fmt.Errorf("%w: %s is %s", ErrNotLoaded, i.ID, status)
	}
	return fn(m)
}

// Close releases the backend model. In-flight calls finish first.
func (i *Instance) Close() error {
	i.use.Lock()
	defer i.use.Unlock()

	i.mu.Lock()
	m := i.model
	i.model = nil
	i.status = ModelStatusUnloaded
	i.mu.Unlock()

	if m == nil {
		return nil
	}
	return m.Close()
}
