package tvm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVersion(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "version.json")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadVersion(t *testing.T) {
	v, err := ReadVersion(writeVersion(t, `{"version": "1.2.0", "runtime": "tvm-0.8"}`))
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", v.Version)
	assert.Equal(t, "tvm-0.8", v.Runtime)
	assert.True(t, v.Valid())
	assert.Equal(t, -1, v.Compare(Version{Version: "v1.10.0"}))
}

func TestReadVersion_NotSemver(t *testing.T) {
	v, err := ReadVersion(writeVersion(t, `{"version": "latest"}`))
	require.NoError(t, err)

	assert.Equal(t, "latest", v.Version)
	assert.False(t, v.Valid())
}

func TestReadVersion_Malformed(t *testing.T) {
	_, err := ReadVersion(writeVersion(t, `{"version": `))
	assert.Error(t, err)

	_, err = ReadVersion(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
