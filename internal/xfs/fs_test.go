package xfs

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDirectory_Local(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.params"), []byte("p"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.params"), 0o755))

	paths, err := ListDirectory(LocalFS{}, dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "model.json"),
		filepath.Join(dir, "model.params"),
	}, paths)
}

func TestListDirectory_FileURI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.tflite"), []byte("t"), 0o644))

	paths, err := ListDirectory(LocalFS{}, "file://"+dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "model.tflite")}, paths)
}

func TestListDirectory_Missing(t *testing.T) {
	_, err := ListDirectory(nil, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestListDirectory_FromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"models/resnet/model.json":       {Data: []byte("{}")},
		"models/resnet/model.so":         {Data: []byte("lib")},
		"models/resnet/sub/extra.params": {Data: []byte("p")},
	}

	paths, err := ListDirectory(FromFS(fsys), "/models/resnet/")
	require.NoError(t, err)
	assert.Equal(t, []string{"models/resnet/model.json", "models/resnet/model.so"}, paths)

	infos, err := FromFS(fsys).ListDirectory("models/resnet")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, FileTypeDirectory, infos[2].Type)
	assert.Equal(t, int64(3), infos[1].Size)
}
