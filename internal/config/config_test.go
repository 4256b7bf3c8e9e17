package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filetree/internal/fs"
)

func TestLoad_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManager(path)

	require.NoError(t, m.Load())
	require.NoError(t, m.ParseError())
	require.FileExists(t, path)

	cfg := m.Get()
	require.True(t, cfg.Tree.AutoOpenLast)
	require.True(t, cfg.Tree.CompactChains)
	require.True(t, cfg.Tree.ShowDotfiles)
	require.Equal(t, "fold", cfg.Tree.NameOrder)
	require.Equal(t, 4, cfg.FS.Workers)
	require.Equal(t, "filetree.root", cfg.Events.Subject)
	require.Empty(t, cfg.Events.NATSURL)
	require.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
  "tree": {"autoOpenLast": false, "compactChains": false, "nameOrder": "collate", "locale": "sv"},
  "fs": {"workers": 2},
  "events": {"natsURL": "nats://127.0.0.1:4222"}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	m := NewManager(path)
	require.NoError(t, m.Load())
	cfg := m.Get()

	require.False(t, cfg.Tree.AutoOpenLast)
	require.False(t, cfg.Tree.CompactChains)
	require.True(t, cfg.Tree.ShowDotfiles, "missing keys keep defaults")
	require.Equal(t, 2, cfg.FS.Workers)
	require.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
	require.Equal(t, "filetree.root", cfg.Events.Subject)

	opts := cfg.FSOptions()
	require.Equal(t, fs.OrderCollate, opts.Order)
	require.Equal(t, "sv", opts.Locale)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("FILETREE_FS_WORKERS", "9")
	t.Setenv("FILETREE_TREE_SHOWDOTFILES", "false")

	m := NewManager(path)
	require.NoError(t, m.Load())
	cfg := m.Get()

	require.Equal(t, 9, cfg.FS.Workers)
	require.False(t, cfg.Tree.ShowDotfiles)
	require.False(t, cfg.FSOptions().ShowDotfiles)
}

func TestLoad_ParseErrorKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tree": {`), 0o644))

	m := NewManager(path)
	require.NoError(t, m.Load())
	require.Error(t, m.ParseError())
	require.Equal(t, *DefaultConfig(), m.Get())
}

func TestLoad_UnknownNameOrderFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tree": {"nameOrder": "shuffle"}}`), 0o644))

	m := NewManager(path)
	require.NoError(t, m.Load())
	require.Equal(t, "fold", m.Get().Tree.NameOrder)
}

func TestSetters_Persist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager(path)
	require.NoError(t, m.Load())

	require.NoError(t, m.SetCompactChains(false))
	require.NoError(t, m.SetAutoOpenLast(false))
	require.NoError(t, m.SetShowDotfiles(false))
	require.NoError(t, m.SetNameOrder("exact"))
	require.Error(t, m.SetNameOrder("random"))

	reloaded := NewManager(path)
	require.NoError(t, reloaded.Load())
	cfg := reloaded.Get()
	require.False(t, cfg.Tree.CompactChains)
	require.False(t, cfg.Tree.AutoOpenLast)
	require.False(t, cfg.Tree.ShowDotfiles)
	require.Equal(t, "exact", cfg.Tree.NameOrder)
}

func TestNewManager_UsesEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "from-env.json")
	t.Setenv("FILETREE_CONFIG", path)
	require.Equal(t, path, NewManager("").Path())
}

func TestGenerateConfig_BacksUpExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	backup, err := GenerateConfig(path)
	require.NoError(t, err)
	require.Empty(t, backup)

	require.NoError(t, os.WriteFile(path, []byte(`{"fs": {"workers": 7}}`), 0o644))
	backup, err = GenerateConfig(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(filepath.Base(backup), "config.backup."))

	old, err := os.ReadFile(backup)
	require.NoError(t, err)
	require.Contains(t, string(old), `"workers": 7`)

	m := NewManager(path)
	require.NoError(t, m.Load())
	require.Equal(t, 4, m.Get().FS.Workers)
}
