package tvm

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/xfs"
)

const (
	graphExt    = ".json"
	paramsExt   = ".params"
	versionFile = "version.json"
)

// auxiliaryJSON are descriptor files exported next to the graph that are not
// the graph itself.
var auxiliaryJSON = map[string]bool{
	"model-shapes.json": true,
	"hyperparams.json":  true,
	versionFile:         true,
}

// ModelPath holds the artifact paths of a compiled graph model.
type ModelPath struct {
	Graph   string
	Lib     string
	Params  string
	Version string // optional
}

// missing returns the roles of the required artifacts that were not found.
func (p ModelPath) missing() []string {
	var roles []string
	if p.Graph == "" {
		roles = append(roles, "graph")
	}
	if p.Lib == "" {
		roles = append(roles, "library")
	}
	if p.Params == "" {
		roles = append(roles, "params")
	}
	return roles
}

// LibExt returns the compiled library extension for goos.
func LibExt(goos string) string {
	switch goos {
	case "darwin", "ios":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// ResolvePaths locates the graph, compiled library and params blob of the
// model in dir, plus version.json when present. When several files match a
// role the last one listed wins.
func ResolvePaths(fsys xfs.FileSystem, dir string) (ModelPath, error) {
	files, err := xfs.ListDirectory(fsys, dir)
	if err != nil {
		return ModelPath{}, fmt.Errorf("resolve artifacts: %w", err)
	}

	libExt := LibExt(runtime.GOOS)

	var p ModelPath
	for _, f := range files {
		name := xfs.Basename(f)

		switch {
		case name == versionFile:
			p.Version = f
		case strings.HasSuffix(name, graphExt) && !auxiliaryJSON[name]:
			p.Graph = f
		case strings.HasSuffix(name, libExt):
			p.Lib = f
		case strings.HasSuffix(name, paramsExt):
			p.Params = f
		}
	}

	if roles := p.missing(); len(roles) > 0 {
		return p, fmt.Errorf("%w: %s has no %s", backend.ErrMissingArtifact, dir, strings.Join(roles, ", "))
	}

	return p, nil
}
