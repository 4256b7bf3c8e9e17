package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		paths []string
	}{
		{"empty", nil},
		{"single", []string{"/home/u/project"}},
		{"many", []string{"/r", "/r/a", "/r/a/b", "/r/with space", "/r/semi;colon", "/r/colon:x"}},
		{"unicode", []string{"/r/é", "/r/日本"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSnapshot(tc.paths...)
			got := Decode(s.Encode())
			require.True(t, s.Equal(got), "decode(encode(%v)) = %v", s.Paths(), got.Paths())
			require.Equal(t, len(tc.paths), got.Len())
		})
	}
}

func TestDecode_EmptyIsEmpty(t *testing.T) {
	s := Decode("")
	require.True(t, s.Empty())
	require.False(t, s.Contains(""))
	require.Equal(t, "", s.Encode())
}

func TestNewSnapshot_DropsDuplicatesAndInvalid(t *testing.T) {
	s := NewSnapshot("/a", "", "/b", "/a", "/bad\x00path")
	require.Equal(t, []string{"/a", "/b"}, s.Paths())
	require.True(t, s.Contains("/b"))
	require.False(t, s.Contains("/bad\x00path"))
}

func TestCapture_CollectsExpandedDepthFirst(t *testing.T) {
	root := t.TempDir()
	mkfiles(t, root, "a/b/x.txt", "a/c", "d/y.txt")
	e, q := newEngine(t, root)
	e.Compact = false

	e.Expand(e.Tree.Root())
	q.drain(e)
	e.Expand(mustFind(t, e.Tree, filepath.Join(root, "d")))
	e.Expand(mustFind(t, e.Tree, filepath.Join(root, "a")))
	q.drain(e)
	e.Expand(mustFind(t, e.Tree, filepath.Join(root, "a", "b")))
	q.drain(e)

	snap := Capture(e.Tree)
	require.Equal(t, []string{
		root,
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "d"),
	}, snap.Paths())

	require.True(t, Capture(nil).Empty())
}

// expandPaths opens a fresh tree at root and expands rel paths in order.
func expandPaths(t *testing.T, root string, rel ...string) (*Engine, *queue) {
	t.Helper()
	e, q := newEngine(t, root)
	e.Compact = false
	e.Expand(e.Tree.Root())
	q.drain(e)
	for _, r := range rel {
		e.Expand(mustFind(t, e.Tree, filepath.Join(root, r)))
		q.drain(e)
	}
	return e, q
}

func TestRestore_Fidelity(t *testing.T) {
	root := t.TempDir()
	mkfiles(t, root, "a/b/deep/z.txt", "a/other", "c/k.txt", "f.txt")

	before, _ := expandPaths(t, root, "a", "a/b")
	snap := Decode(Capture(before.Tree).Encode())
	require.Equal(t, 3, snap.Len())

	after, q := newEngine(t, root)
	after.Expand(after.Tree.Root())
	q.drain(after)

	task := Restore(after, snap)
	q.drain(after)
	require.NoError(t, task.Err())

	require.Equal(t, map[string]bool{
		root:                         true,
		filepath.Join(root, "a"):      true,
		filepath.Join(root, "a", "b"): true,
	}, expandedSet(after.Tree))
}

func TestRestore_SkipsVanishedPaths(t *testing.T) {
	root := t.TempDir()
	mkfiles(t, root, "a/b/z.txt", "a/other", "c")

	before, _ := expandPaths(t, root, "a", "a/b")
	snap := Capture(before.Tree)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "a", "b")))

	after, q := newEngine(t, root)
	after.Expand(after.Tree.Root())
	q.drain(after)

	task := Restore(after, snap)
	q.drain(after)
	require.NoError(t, task.Err())

	require.Equal(t, map[string]bool{
		root:                    true,
		filepath.Join(root, "a"): true,
	}, expandedSet(after.Tree))
	_, ok := after.Tree.FindByPath(filepath.Join(root, "a", "b"))
	require.False(t, ok)
}

func TestRestore_CollapsesCompactedChains(t *testing.T) {
	root := t.TempDir()
	mkfiles(t, root, "only/inner/z.txt")

	after, q := newEngine(t, root)
	after.Expand(after.Tree.Root())
	q.drain(after)
	require.Len(t, after.Tree.ExpandedPaths(), 3, "compaction expanded the chain")

	task := Restore(after, NewSnapshot(root, filepath.Join(root, "only")))
	q.drain(after)
	require.NoError(t, task.Err())

	require.Equal(t, map[string]bool{
		root:                       true,
		filepath.Join(root, "only"): true,
	}, expandedSet(after.Tree))
}

func TestRestore_EmptySnapshotCompletesImmediately(t *testing.T) {
	root := t.TempDir()
	e, q := newEngine(t, root)

	task := Restore(e, Snapshot{})
	select {
	case <-task.Done():
	default:
		t.Fatal("empty restore should be done")
	}
	require.NoError(t, task.Err())
	require.Empty(t, q.reqs)
}

func TestRestore_ExpandsCollapsedRoot(t *testing.T) {
	root := t.TempDir()
	mkfiles(t, root, "a/x.txt", "b")
	e, q := newEngine(t, root)

	task := Restore(e, NewSnapshot(root, filepath.Join(root, "a")))
	q.drain(e)
	require.NoError(t, task.Err())
	require.Equal(t, map[string]bool{
		root:                    true,
		filepath.Join(root, "a"): true,
	}, expandedSet(e.Tree))
}

func TestRestore_DiscardedTreeFails(t *testing.T) {
	root := t.TempDir()
	mkfiles(t, root, "a", "b")
	e, q := newEngine(t, root)
	e.Expand(e.Tree.Root())
	q.drain(e)

	task := Restore(e, NewSnapshot(root, filepath.Join(root, "a")))
	e.Discard()
	require.ErrorIs(t, task.Err(), ErrDiscarded)
}
