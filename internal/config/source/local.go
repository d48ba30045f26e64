package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ekisa-team/dlrshim/internal/config"
	"github.com/ekisa-team/dlrshim/internal/xfs"
)

// LocalResolver resolves a local source to an existing path. Nothing is copied.
type LocalResolver struct{}

// Download resolves the configured path, relative to targetDir unless absolute.
func (LocalResolver) Download(_ context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	src, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	local, ok := src.(config.LocalSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", src)
	}

	p := xfs.ExpandTilde(local.Path)
	if !filepath.IsAbs(p) {
		p = filepath.Join(targetDir, p)
	}

	if _, err := os.Stat(p); err != nil {
		return "", false, fmt.Errorf("model path %s: %w", p, err)
	}

	return p, true, nil
}
