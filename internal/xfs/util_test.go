package xfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a/b/c.so", "c.so"},
		{"/a/b/", "b"},
		{"/a/b//", "b"},
		{"c.so", "c.so"},
		{"a/./b", "b"},
		{"a/..", ".."},
		{"/", "/"},
		{"///", "/"},
		{"", "."},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, basename(tc.path, "/"), "basename(%q)", tc.path)
	}
}

func TestBasename_BackslashSeparators(t *testing.T) {
	seps := `/\`

	assert.Equal(t, "model.dll", basename(`C:\models\resnet\model.dll`, seps))
	assert.Equal(t, "resnet", basename(`C:\models\resnet\\`, seps))
	assert.Equal(t, "resnet", basename(`C:/models/resnet/`, seps))
	assert.Equal(t, "b.params", basename(`a\b.params`, seps))
}

func TestBasename_HostSeparators(t *testing.T) {
	assert.Equal(t, "c.so", Basename("/a/b/c.so"))
	assert.Equal(t, "b", Basename("/a/b/"))
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "models"), ExpandTilde("~/models"))
	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, "/opt/models", ExpandTilde("/opt/models"))
	assert.Equal(t, "~user/models", ExpandTilde("~user/models"))
}

func TestIsFileEmpty(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.so")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	full := filepath.Join(dir, "full.so")
	require.NoError(t, os.WriteFile(full, []byte{0x7f, 'E', 'L', 'F'}, 0o644))

	ok, err := IsFileEmpty(empty)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsFileEmpty(full)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = IsFileEmpty(filepath.Join(dir, "missing.so"))
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	p := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"nodes":[]}`), 0o644))

	data, err := ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[]}`, string(data))

	empty := filepath.Join(dir, "empty.params")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	data, err = ReadFile(empty)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = ReadFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
