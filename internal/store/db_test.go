package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "filetree.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecentFolder(t *testing.T) {
	db := openTestDB(t)

	got, err := db.RecentFolder()
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, db.SetRecentFolder("/home/u/project"))
	require.NoError(t, db.SetRecentFolder("/home/u/other"))
	got, err = db.RecentFolder()
	require.NoError(t, err)
	require.Equal(t, "/home/u/other", got)

	require.NoError(t, db.SetRecentFolder(""))
	got, err = db.RecentFolder()
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestTreeState_RoundTripsNUL(t *testing.T) {
	db := openTestDB(t)
	state := "/r\x00/r/a\x00/r/a/b"

	require.NoError(t, db.SaveTreeState("/r", state))
	got, err := db.TreeState("/r")
	require.NoError(t, err)
	require.Equal(t, state, got)

	other, err := db.TreeState("/elsewhere")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestTreeState_ClearAndEmpty(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveTreeState("/r", "/r"))
	require.NoError(t, db.ClearTreeState("/r"))
	got, err := db.TreeState("/r")
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, db.SaveTreeState("/r", "/r"))
	require.NoError(t, db.SaveTreeState("/r", ""))
	got, err = db.TreeState("/r")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	_, ok, err := db.setting("theme")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.saveSetting("theme", "dark"))
	v, ok, err := db.setting("theme")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "dark", v)

	require.NoError(t, db.deleteSetting("theme"))
	_, ok, err = db.setting("theme")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filetree.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SetRecentFolder("/srv"))
	require.NoError(t, db.SaveTreeState("/srv", "/srv\x00/srv/www"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	root, err := db.RecentFolder()
	require.NoError(t, err)
	require.Equal(t, "/srv", root)
	state, err := db.TreeState(root)
	require.NoError(t, err)
	require.Equal(t, "/srv\x00/srv/www", state)
}

func TestClosedDBReportsErrors(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "filetree.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.RecentFolder()
	require.Error(t, err)
}
