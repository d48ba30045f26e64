package xfs

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileType is the kind of entry returned by a FileSystem listing.
type FileType int

const (
	// FileTypeRegular is a regular file.
	FileTypeRegular FileType = iota

	// FileTypeDirectory is a directory.
	FileTypeDirectory
)

// FileInfo describes one entry of a directory listing.
type FileInfo struct {
	Path string
	Size int64
	Type FileType
}

// FileSystem is the storage backend used to enumerate model directories.
type FileSystem interface {
	// ListDirectory returns the entries directly under uri.
	ListDirectory(uri string) ([]FileInfo, error)
}

// Default is the FileSystem used when callers do not provide one.
var Default FileSystem = LocalFS{}

// Compile-time interface satisfaction checks.
var (
	_ FileSystem = LocalFS{}
	_ FileSystem = (*ioFS)(nil)
)

// LocalFS lists directories on the host filesystem. A "file://" prefix is accepted.
type LocalFS struct{}

// ListDirectory lists the entries of a local directory. Symbolic links are
// followed so a link to a directory is reported as a directory.
func (LocalFS) ListDirectory(uri string) ([]FileInfo, error) {
	dir := strings.TrimPrefix(uri, "file://")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		info := FileInfo{Path: p, Type: FileTypeRegular}

		if st, err := os.Stat(p); err == nil {
			info.Size = st.Size()
			if st.IsDir() {
				info.Type = FileTypeDirectory
			}
		} else if entry.IsDir() {
			info.Type = FileTypeDirectory
		}

		infos = append(infos, info)
	}

	return infos, nil
}

type ioFS struct {
	fsys fs.FS
}

// FromFS adapts an io/fs tree to a FileSystem. Listed paths are slash-separated
// and relative to the root of fsys.
func FromFS(fsys fs.FS) FileSystem {
	return &ioFS{fsys: fsys}
}

// ListDirectory lists the entries of dir inside the wrapped tree.
func (f *ioFS) ListDirectory(uri string) ([]FileInfo, error) {
	dir := strings.Trim(uri, "/")
	if dir == "" {
		dir = "."
	}

	entries, err := fs.ReadDir(f.fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list directory %s: %w", dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		info := FileInfo{Path: path.Join(dir, entry.Name()), Type: FileTypeRegular}
		if entry.IsDir() {
			info.Type = FileTypeDirectory
		} else if st, err := entry.Info(); err == nil {
			info.Size = st.Size()
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// ListDirectory returns the paths of the regular files directly under dir,
// in the order the FileSystem reports them.
func ListDirectory(fsys FileSystem, dir string) ([]string, error) {
	if fsys == nil {
		fsys = Default
	}

	infos, err := fsys.ListDirectory(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Type != FileTypeDirectory {
			paths = append(paths, info.Path)
		}
	}

	return paths, nil
}
