package profiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotd/internal/config"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDiscover_SortedJSONOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.json"), "{}")
	writeFile(t, filepath.Join(dir, "a.json"), "{}")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, "nested", "c.json"), "{}")

	ps, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "a", ps[0].Name)
	assert.Equal(t, "b", ps[1].Name)
	assert.Equal(t, filepath.Join(dir, "a.json"), ps[0].Path)
	assert.True(t, filepath.IsAbs(ps[1].Path))
}

func TestDiscover_EmptyDir(t *testing.T) {
	ps, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestDiscover_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Discover(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, IsHydration(err))
	assert.Contains(t, err.Error(), "does not exist")

	file := filepath.Join(dir, "f.json")
	writeFile(t, file, "{}")
	_, err = Discover(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/profiles")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "profiles"), got)

	got, err = ExpandHome("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = ExpandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}

func TestLocalProvider_KeyFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "active")
	writeFile(t, filepath.Join(dir, "a.json"), "{}")

	res, err := LocalProvider{Dir: dir}.Hydrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir, res.ProfilesDir)
	assert.Empty(t, res.KeyFile)

	writeFile(t, filepath.Join(root, "key.txt"), "k1\nk2\n")
	res, err = LocalProvider{Dir: dir}.Hydrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "key.txt"), res.KeyFile)
}

func TestLocalProvider_Missing(t *testing.T) {
	_, err := LocalProvider{Dir: filepath.Join(t.TempDir(), "nope")}.Hydrate(context.Background())
	require.Error(t, err)
	assert.True(t, IsHydration(err))
}

func TestLoad_Local(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "p1.json"), "{}")
	writeFile(t, filepath.Join(dir, "p2.json"), "{}")

	ps, res, err := Load(context.Background(), config.ProfilesConfig{Backend: "local", Dir: dir}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, dir, res.ProfilesDir)
	require.Len(t, ps, 2)
	assert.Equal(t, "p1", ps[0].Name)
}

func TestNewProvider_UnknownBackend(t *testing.T) {
	_, err := NewProvider(context.Background(), config.ProfilesConfig{Backend: "ftp"}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, IsHydration(err))
	assert.Contains(t, err.Error(), "ftp")
}

func TestNewProvider_S3RequiresBucket(t *testing.T) {
	_, err := NewProvider(context.Background(), config.ProfilesConfig{Backend: "s3"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}
