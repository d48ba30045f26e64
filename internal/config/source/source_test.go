package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/dlrshim/internal/config"
	"github.com/ekisa-team/dlrshim/internal/envvar"
)

type fakeHF struct {
	calls [][]string
	fail  int
}

func (f *fakeHF) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(f.calls) <= f.fail {
		return []byte("503 Service Unavailable"), errors.New("exit status 1")
	}

	dir := args[slices.Index(args, "--local-dir")+1]
	return nil, os.WriteFile(filepath.Join(dir, "model.params"), []byte{1}, 0o644)
}

func newFakeDownloader(f *fakeHF) *HuggingFaceDownloader {
	d := NewHuggingFaceDownloader()
	d.run = f.run
	d.retryDelay = 0
	return d
}

func hfModel(src config.HuggingFaceSource) *config.ModelConfig {
	m := &config.ModelConfig{}
	m.SetHuggingFaceSource(src)
	return m
}

func TestHuggingFace_DownloadAndMarker(t *testing.T) {
	t.Setenv(envvar.HuggingFaceToken, "hf_secret")

	f := &fakeHF{}
	d := newFakeDownloader(f)
	target := t.TempDir()
	m := hfModel(config.HuggingFaceSource{Repo: "acme/resnet", Revision: "v2", Include: []string{"*.params"}})

	path, cached, err := d.Download(context.Background(), m, target)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, filepath.Join(target, "acme", "resnet"), path)
	assert.FileExists(t, filepath.Join(path, "model.params"))

	require.Len(t, f.calls, 1)
	assert.Equal(t, []string{
		"hf", "download", "acme/resnet", "--local-dir", path,
		"--revision", "v2", "--include", "*.params", "--token", "hf_secret",
	}, f.calls[0])

	// Same revision: the marker short-circuits the download.
	_, cached, err = d.Download(context.Background(), m, target)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Len(t, f.calls, 1)

	// New revision: downloaded again.
	m = hfModel(config.HuggingFaceSource{Repo: "acme/resnet", Revision: "v3"})
	_, cached, err = d.Download(context.Background(), m, target)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, f.calls, 2)
}

func TestHuggingFace_Retries(t *testing.T) {
	f := &fakeHF{fail: 2}
	d := newFakeDownloader(f)

	_, _, err := d.Download(context.Background(), hfModel(config.HuggingFaceSource{Repo: "acme/m"}), t.TempDir())
	require.NoError(t, err)
	assert.Len(t, f.calls, 3)

	f = &fakeHF{fail: 5}
	d = newFakeDownloader(f)

	_, _, err = d.Download(context.Background(), hfModel(config.HuggingFaceSource{Repo: "acme/m"}), t.TempDir())
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Len(t, f.calls, 3)
}

func TestHuggingFace_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeHF{fail: 5}
	_, _, err := newFakeDownloader(f).Download(ctx, hfModel(config.HuggingFaceSource{Repo: "acme/m"}), t.TempDir())
	assert.ErrorContains(t, err, "download canceled")
	assert.Len(t, f.calls, 1)
}

func TestHuggingFace_WrongSource(t *testing.T) {
	m := &config.ModelConfig{}
	m.SetLocalSource(config.LocalSource{Path: "x"})

	_, _, err := NewHuggingFaceDownloader().Download(context.Background(), m, t.TempDir())
	assert.ErrorContains(t, err, "invalid source type")
}

func TestLocalResolver(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(target, "resnet"), 0o755))

	m := &config.ModelConfig{}
	m.SetLocalSource(config.LocalSource{Path: "resnet"})

	path, cached, err := LocalResolver{}.Download(context.Background(), m, target)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, filepath.Join(target, "resnet"), path)

	abs := t.TempDir()
	m.SetLocalSource(config.LocalSource{Path: abs})
	path, _, err = LocalResolver{}.Download(context.Background(), m, target)
	require.NoError(t, err)
	assert.Equal(t, abs, path)

	m.SetLocalSource(config.LocalSource{Path: "missing"})
	_, _, err = LocalResolver{}.Download(context.Background(), m, target)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGetDownloader(t *testing.T) {
	d, err := GetDownloader(context.Background(), config.SourceTypeLocal)
	require.NoError(t, err)
	assert.IsType(t, LocalResolver{}, d)

	d, err = GetDownloader(context.Background(), config.SourceTypeHuggingFace)
	require.NoError(t, err)
	assert.IsType(t, &HuggingFaceDownloader{}, d)

	_, err = GetDownloader(context.Background(), "s3")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestEnsureModelsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureModelsDirectory(dir))
	assert.DirExists(t, dir)
}
