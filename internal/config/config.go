package config

import (
	"errors"
	"os"

	"github.com/ekisa-team/dlrshim/internal/envvar"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeLocal represents a model directory already on disk.
	SourceTypeLocal SourceType = "local"

	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// Config holds the main configuration for the application.
type Config struct {
	Version string                 `json:"version"           yaml:"version"`
	Storage StorageConfig          `json:"storage,omitempty" yaml:"storage,omitempty"`
	Server  ServerConfig           `json:"server,omitempty"  yaml:"server,omitempty"`
	Models  map[string]ModelConfig `json:"models"            yaml:"models"`
}

// StorageConfig holds configuration for the model store.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// ServerConfig holds the listen addresses of the inference servers.
type ServerConfig struct {
	HTTPAddr string `json:"http_addr,omitempty" yaml:"http_addr,omitempty"`
	GRPCAddr string `json:"grpc_addr,omitempty" yaml:"grpc_addr,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Source SourceConfig `json:"source" yaml:"source"`

	// Backend forces a backend kind instead of detecting it.
	Backend string   `json:"backend,omitempty" yaml:"backend,omitempty"`
	Tags    []string `json:"tags,omitempty"    yaml:"tags,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	Local       *LocalSource       `json:"local,omitempty"       yaml:"local,omitempty"`
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// LocalSource is a model directory on disk. Relative paths are resolved
// against the models directory.
type LocalSource struct {
	Path string `json:"path" yaml:"path"`
}

// Type returns the local source type.
func (l LocalSource) Type() SourceType {
	return SourceTypeLocal
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// ErrNoSource is returned by GetSource when no source is configured.
var ErrNoSource = errors.New("no source configured for model")

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	switch {
	case m.Source.Local != nil:
		return *m.Source.Local, nil
	case m.Source.HuggingFace != nil:
		return *m.Source.HuggingFace, nil
	}

	return nil, ErrNoSource
}

// SetLocalSource sets the local source.
func (m *ModelConfig) SetLocalSource(source LocalSource) {
	m.Source = SourceConfig{Local: &source}
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source = SourceConfig{HuggingFace: &source}
}

// ApplyEnv overrides server addresses from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(envvar.DlrshimHTTPAddr); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv(envvar.DlrshimGRPCAddr); v != "" {
		c.Server.GRPCAddr = v
	}
}

// HTTPAddr returns the HTTP listen address, or the default.
func (c *Config) HTTPAddr() string {
	if c.Server.HTTPAddr != "" {
		return c.Server.HTTPAddr
	}
	return DefaultHTTPAddr
}

// GRPCAddr returns the gRPC listen address, or the default.
func (c *Config) GRPCAddr() string {
	if c.Server.GRPCAddr != "" {
		return c.Server.GRPCAddr
	}
	return DefaultGRPCAddr
}
