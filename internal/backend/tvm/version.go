package tvm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/ekisa-team/dlrshim/internal/xfs"
)

// Version is the content of an optional version.json descriptor.
type Version struct {
	Version string `json:"version,omitempty"`
	Runtime string `json:"runtime,omitempty"`
}

// Valid reports whether Version is a semantic version. A leading "v" is optional.
func (v Version) Valid() bool {
	return v.Version != "" && semver.IsValid(canonical(v.Version))
}

// Compare compares the model versions of v and w like semver.Compare.
func (v Version) Compare(w Version) int {
	return semver.Compare(canonical(v.Version), canonical(w.Version))
}

// ReadVersion parses the version descriptor at path. An invalid version
// string is logged and kept as is.
func ReadVersion(path string) (Version, error) {
	data, err := xfs.ReadFile(path)
	if err != nil {
		return Version{}, err
	}

	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return Version{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if v.Version != "" && !v.Valid() {
		slog.Warn("Model version is not a semantic version", "path", path, "version", v.Version)
	}
	return v, nil
}

func canonical(s string) string {
	if s != "" && !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return s
}
