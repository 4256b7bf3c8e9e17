package tree

import (
	"errors"
	"strings"

	"github.com/justyntemme/filetree/internal/debug"
	"github.com/justyntemme/filetree/internal/metrics"
)

// Delimiter separates paths in an encoded snapshot. NUL cannot occur in a
// filesystem path.
const Delimiter = "\x00"

// Snapshot is the ordered set of paths that were expanded when it was taken.
type Snapshot struct {
	paths []string
	set   map[string]struct{}
}

// NewSnapshot builds a snapshot from paths, dropping duplicates and values
// that cannot be paths.
func NewSnapshot(paths ...string) Snapshot {
	s := Snapshot{set: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		if p == "" || strings.Contains(p, Delimiter) {
			continue
		}
		if _, dup := s.set[p]; dup {
			continue
		}
		s.set[p] = struct{}{}
		s.paths = append(s.paths, p)
	}
	return s
}

// Capture records every expanded node of t, depth-first.
func Capture(t *Tree) Snapshot {
	if t == nil {
		return Snapshot{}
	}
	return NewSnapshot(t.ExpandedPaths()...)
}

// Decode parses an encoded snapshot. Empty input gives an empty snapshot.
func Decode(s string) Snapshot {
	if s == "" {
		return Snapshot{}
	}
	return NewSnapshot(strings.Split(s, Delimiter)...)
}

// Encode joins the paths with Delimiter.
func (s Snapshot) Encode() string {
	return strings.Join(s.paths, Delimiter)
}

// Contains reports whether path was expanded.
func (s Snapshot) Contains(path string) bool {
	_, ok := s.set[path]
	return ok
}

// Len returns the number of paths.
func (s Snapshot) Len() int { return len(s.paths) }

// Empty reports whether the snapshot holds no paths.
func (s Snapshot) Empty() bool { return len(s.paths) == 0 }

// Paths returns the paths in capture order.
func (s Snapshot) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Equal reports whether both snapshots hold the same paths in the same order.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.paths) != len(o.paths) {
		return false
	}
	for i := range s.paths {
		if s.paths[i] != o.paths[i] {
			return false
		}
	}
	return true
}

// Restore re-expands the nodes of e's tree whose paths are in snap. Expanded
// nodes outside the snapshot are collapsed first. Each expansion is its own
// listing; the children it produces are checked against snap when it lands.
// Paths that no longer exist are skipped. The returned task completes once
// the whole cascade has drained.
func Restore(e *Engine, snap Snapshot) *Task {
	t := e.Tree
	root := t.Root()
	g := newGroup(root)
	if snap.Empty() {
		g.settle()
		return g.task
	}
	metrics.RestoresTotal.Inc()
	debug.Log(debug.TREE, "Restore: %d paths under %s", snap.Len(), t.RootPath())

	for _, c := range t.Children(root) {
		if n, _ := t.Node(c); n.Expanded || e.Loading(c) {
			e.Collapse(c)
		}
	}

	// An expansion abandoned by a later collapse is skipped; only a
	// discarded tree fails the restore.
	finish := func(err error) {
		if errors.Is(err, ErrDiscarded) && !e.discarded {
			err = nil
		}
		g.finish(err)
	}

	var visit func(parent NodeID)
	visit = func(parent NodeID) {
		for _, c := range t.Children(parent) {
			n, ok := t.Node(c)
			if !ok || !n.IsDir() || !snap.Contains(n.Path) {
				continue
			}
			g.add()
			child := c
			e.expand(child, false).Then(func(err error) {
				if err == nil {
					visit(child)
				}
				finish(err)
			})
		}
	}

	// Held until the first pass is queued so an early completion cannot
	// settle the group.
	g.add()
	rootNode, _ := t.Node(root)
	if !rootNode.Expanded && snap.Contains(rootNode.Path) {
		g.add()
		e.expand(root, false).Then(func(err error) {
			if err == nil {
				visit(root)
			}
			finish(err)
		})
	} else {
		visit(root)
	}
	g.finish(nil)
	return g.task
}
