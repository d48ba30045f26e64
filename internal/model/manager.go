package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/config"
	"github.com/ekisa-team/dlrshim/internal/config/source"
	"github.com/ekisa-team/dlrshim/internal/envvar"
	"github.com/ekisa-team/dlrshim/internal/metrics"
	"github.com/ekisa-team/dlrshim/internal/xfs"
)

// DownloaderFunc returns the downloader of a source type.
type DownloaderFunc func(ctx context.Context, t config.SourceType) (source.Downloader, error)

// Manager orchestrates model lifecycle for any backend kind.
type Manager struct {
	backends    *backend.Registry
	downloaders DownloaderFunc
	parallelism int

	registry *Registry
	mu       sync.RWMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDownloaders replaces source.GetDownloader.
func WithDownloaders(fn DownloaderFunc) ManagerOption {
	return func(m *Manager) { m.downloaders = fn }
}

// WithParallelism bounds the number of models fetched and loaded at once.
func WithParallelism(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.parallelism = n
		}
	}
}

// NewManager creates a Manager that loads models through backends.
func NewManager(backends *backend.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		backends:    backends,
		downloaders: source.GetDownloader,
		parallelism: min(runtime.GOMAXPROCS(0), 4),
		registry:    NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry
}

// Get returns the instance with the given ID.
func (m *Manager) Get(id string) (*Instance, error) {
	instance, ok := m.Registry().Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return instance, nil
}

// LoadModelsFromConfig fetches and loads every configured model, then swaps
// the registry. Loaded models whose configuration did not change are kept as
// they are; models dropped from the config are closed. Models that fail stay
// in the registry with status failed and their errors are returned joined.
func (m *Manager) LoadModelsFromConfig(ctx context.Context, cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	modelsPath := resolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}

	prev := m.registry
	next := NewRegistry()

	var (
		errsMu sync.Mutex
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)

	for id, modelConfig := range cfg.Models {
		if old, ok := prev.Get(id); ok && old.Status() == ModelStatusLoaded && cmp.Equal(old.Config, modelConfig) {
			next.Set(old)
			slog.Debug("Model unchanged, keeping loaded instance", "model_id", id)
			continue
		}

		instance := NewInstance(id, modelConfig)
		next.Set(instance)

		g.Go(func() error {
			if err := m.load(gctx, instance, modelsPath); err != nil {
				slog.Error("Failed to load model", "model_id", id, "error", err)
				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		// Keep serving the previous models.
		for _, instance := range next.List() {
			if old, ok := prev.Get(instance.ID); !ok || old != instance {
				instance.Close()
			}
		}
		return err
	}

	m.registry = next
	m.release(prev, next)

	loaded := 0
	for _, instance := range next.List() {
		if instance.Status() == ModelStatusLoaded {
			loaded++
		}
	}
	metrics.SetModelsLoaded(loaded)
	slog.Info("Model registry updated", "models", next.Len(), "loaded", loaded, "failed", len(errs))

	return errors.Join(errs...)
}

func (m *Manager) load(ctx context.Context, instance *Instance, modelsPath string) error {
	instance.SetStatus(ModelStatusLoading)

	modelSource, err := instance.Config.GetSource()
	if err != nil {
		err = fmt.Errorf("failed to get model source for %s: %w", instance.ID, err)
		instance.Fail(err)
		return err
	}

	downloader, err := m.downloaders(ctx, modelSource.Type())
	if err != nil {
		err = fmt.Errorf("failed to get downloader for %s: %w", instance.ID, err)
		instance.Fail(err)
		return err
	}

	path, cached, err := downloader.Download(ctx, &instance.Config, modelsPath)
	if err != nil {
		err = fmt.Errorf("failed to download model %s into %s: %w", instance.ID, modelsPath, err)
		instance.Fail(err)
		return err
	}
	slog.Debug("Model artifacts ready", "model_id", instance.ID, "path", path, "cached", cached)

	return instance.Load(m.backends, path)
}

// release closes the instances of prev that next no longer holds.
func (m *Manager) release(prev, next *Registry) {
	for _, old := range prev.List() {
		if cur, ok := next.Get(old.ID); ok && cur == old {
			continue
		}
		if err := old.Close(); err != nil {
			slog.Warn("Failed to close replaced model", "model_id", old.ID, "error", err)
		}
		if _, ok := next.Get(old.ID); !ok {
			metrics.DeleteModel(old.ID)
			slog.Info("Model unloaded successfully", "model_id", old.ID)
		}
	}
}

// Close closes every model.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.registry.Close()
	m.registry = NewRegistry()
	metrics.SetModelsLoaded(0)
	return err
}

// resolveModelsPath returns the path to the models directory.
// Precedence:
// 1. DLRSHIM_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func resolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.DlrshimModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
