package xfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/mmap"
)

// pathSeparators lists the bytes treated as path separators on this host.
const pathSeparators = "/" + string(os.PathSeparator)

// ExpandTilde replaces a leading tilde (~) with the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}

	return path
}

// Basename returns the final component of path, after stripping any
// trailing separators. "." and ".." segments are returned as-is.
func Basename(path string) string {
	return basename(path, pathSeparators)
}

func basename(path, seps string) string {
	if path == "" {
		return "."
	}

	end := len(path)
	for end > 0 && strings.IndexByte(seps, path[end-1]) >= 0 {
		end--
	}
	if end == 0 {
		// Path made only of separators.
		return path[:1]
	}

	start := strings.LastIndexAny(path[:end], seps) + 1
	return path[start:end]
}

// IsFileEmpty reports whether the file at path has no content.
func IsFileEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	return info.Size() == 0, nil
}

// ReadFile reads the whole file at path into memory.
func ReadFile(path string) ([]byte, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer r.Close()

	data := make([]byte, r.Len())
	if len(data) == 0 {
		return data, nil
	}

	if _, err := r.ReadAt(data, 0); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return data, nil
}
