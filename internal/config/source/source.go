// Package source materializes configured model sources as local directories.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ekisa-team/dlrshim/internal/config"
)

// ErrUnsupportedSource is returned for source types without a downloader.
var ErrUnsupportedSource = errors.New("unsupported model source")

// Downloader makes a model available under a models directory.
type Downloader interface {
	// Download returns the local directory of the model and whether it was
	// already present.
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error)
}

// GetDownloader returns the downloader for a source type.
func GetDownloader(_ context.Context, t config.SourceType) (Downloader, error) {
	switch t {
	case config.SourceTypeLocal:
		return LocalResolver{}, nil
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, t)
}

// EnsureModelsDirectory creates the models directory if needed.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	return nil
}
