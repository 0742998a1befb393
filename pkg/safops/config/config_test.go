package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/safops/pkg/safops/config"
)

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := config.LoadSettings()
		require.NoError(t, err)
		assert.Equal(t, 4, s.Workers)
		assert.Equal(t, "warn", s.LogLevel)
		assert.True(t, s.ScopedRemovable)
		assert.True(t, s.DocumentTrees)
		assert.False(t, s.StrictRootCheck)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("SAFOPS_WORKERS", "0")
		t.Setenv("SAFOPS_STRICT_ROOT_CHECK", "true")
		t.Setenv("SAFOPS_SCOPED_REMOVABLE", "false")
		t.Setenv("SAFOPS_CONFIG_PATH", "/tmp/safops.yaml")

		s, err := config.LoadSettings()
		require.NoError(t, err)
		assert.Equal(t, 1, s.Workers, "workers are clamped to at least one")
		assert.True(t, s.StrictRootCheck)
		assert.False(t, s.ScopedRemovable)
		assert.Equal(t, "/tmp/safops.yaml", s.ConfigPath)
	})

	t.Run("invalid value falls back to defaults", func(t *testing.T) {
		t.Setenv("SAFOPS_WORKERS", "many")
		_, err := config.LoadSettings()
		assert.Error(t, err)
		assert.Equal(t, config.DefaultSettings(), config.LoadSettingsOrDefault())
	})
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "safops.yaml")

	store, err := config.OpenFileStore(path)
	require.NoError(t, err)
	_, ok := store.Get(config.KeyTreeURI)
	assert.False(t, ok)

	require.NoError(t, store.Set(config.KeyTreeURI, "content://com.android.externalstorage.documents/tree/1234-5678%3A"))
	require.NoError(t, store.Set(config.KeySDCardPath, "/storage/1234-5678"))
	require.NoError(t, store.Delete(config.KeySDCardPath))

	reopened, err := config.OpenFileStore(path)
	require.NoError(t, err)
	v, ok := reopened.Get(config.KeyTreeURI)
	assert.True(t, ok)
	assert.Equal(t, "content://com.android.externalstorage.documents/tree/1234-5678%3A", v)
	_, ok = reopened.Get(config.KeySDCardPath)
	assert.False(t, ok)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed into place")
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0600))
	_, err := config.OpenFileStore(path)
	assert.Error(t, err)
}

func TestBaseConfig(t *testing.T) {
	cfg := config.NewBaseConfig(config.NewMemoryStore())

	assert.True(t, cfg.KeepLastModified(), "keep last modified defaults on")
	assert.Equal(t, 1, cfg.Sorting())
	assert.Empty(t, cfg.SDCardPath())

	require.NoError(t, cfg.SetSDCardPath("/storage/1234-5678/"))
	assert.Equal(t, "/storage/1234-5678", cfg.SDCardPath())

	require.NoError(t, cfg.SetKeepLastModified(false))
	assert.False(t, cfg.KeepLastModified())

	require.NoError(t, cfg.SetSorting(2|1024))
	assert.Equal(t, 1026, cfg.Sorting())

	require.NoError(t, cfg.SetTreeURI("content://x/tree/AB%3A"))
	assert.Equal(t, "content://x/tree/AB%3A", cfg.TreeURI())
	require.NoError(t, cfg.SetTreeURI(""))
	_, ok := cfg.Store().Get(config.KeyTreeURI)
	assert.False(t, ok, "clearing a grant deletes the key")

	require.NoError(t, cfg.Store().Set(config.KeySorting, "oops"))
	assert.Equal(t, 1, cfg.Sorting(), "unparseable values fall back to defaults")
}
