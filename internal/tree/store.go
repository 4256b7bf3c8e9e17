// Package tree holds the lazily expanded directory tree: an arena of nodes
// owned by a single goroutine, the expansion engine that fills it from
// background listings, and the snapshot codec used to carry expansion state
// across a refresh.
package tree

import (
	"errors"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/justyntemme/filetree/internal/debug"
	"github.com/justyntemme/filetree/internal/fs"
)

var (
	ErrNotFound     = errors.New("tree: node not found")
	ErrNotDirectory = errors.New("tree: node is not a directory")
	ErrDiscarded    = errors.New("tree: node discarded before listing completed")
)

const noParent = ^uint32(0)

// NodeID is a handle into a Store. A handle stops resolving once its node
// is destroyed, even if the slot is reused. The zero value never resolves.
type NodeID struct {
	index uint32
	gen   uint32
}

// Valid reports whether the handle was ever issued by a Store.
func (id NodeID) Valid() bool { return id.gen != 0 }

type slot struct {
	gen      uint32
	used     bool
	parent   uint32
	name     string
	kind     fs.Kind
	size     int64
	modTime  time.Time
	children []NodeID
	expanded bool
	loading  bool
}

// Node is a read-only copy of one node.
type Node struct {
	ID       NodeID
	Parent   NodeID
	Name     string
	Path     string
	Kind     fs.Kind
	Size     int64
	ModTime  time.Time
	Children []NodeID
	Expanded bool
	Loading  bool
}

// IsDir reports whether the node is a directory.
func (n Node) IsDir() bool { return n.Kind == fs.KindDirectory }

// Store is an arena of nodes rooted at one directory. It is not safe for
// concurrent use; all calls must come from the goroutine that owns it.
type Store struct {
	rootPath string
	opts     fs.Options
	slots    []slot
	free     []uint32
	byPath   map[string]NodeID
	root     NodeID
}

// NewStore creates a store holding a single, unexpanded root directory node.
func NewStore(rootPath string, opts fs.Options) *Store {
	s := &Store{
		rootPath: filepath.Clean(rootPath),
		opts:     opts,
		byPath:   make(map[string]NodeID),
	}
	s.root = s.alloc(noParent, fs.Entry{
		Name: filepath.Base(s.rootPath),
		Path: s.rootPath,
		Kind: fs.KindDirectory,
	})
	return s
}

// Root returns the root node handle.
func (s *Store) Root() NodeID { return s.root }

// RootPath returns the cleaned root directory path.
func (s *Store) RootPath() string { return s.rootPath }

// Len returns the number of live nodes.
func (s *Store) Len() int { return len(s.byPath) }

func (s *Store) alloc(parent uint32, e fs.Entry) NodeID {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, slot{gen: 1})
		idx = uint32(len(s.slots) - 1)
	}
	sl := &s.slots[idx]
	sl.used = true
	sl.parent = parent
	sl.name = e.Name
	sl.kind = e.Kind
	sl.size = e.Size
	sl.modTime = e.ModTime
	sl.children = nil
	sl.expanded = false
	sl.loading = false

	id := NodeID{index: idx, gen: sl.gen}
	s.byPath[s.path(idx)] = id
	return id
}

// release destroys a node and its subtree.
func (s *Store) release(id NodeID) {
	sl := &s.slots[id.index]
	for _, c := range sl.children {
		s.release(c)
	}
	delete(s.byPath, s.path(id.index))
	sl.used = false
	sl.children = nil
	sl.gen++
	if sl.gen == 0 {
		sl.gen = 1
	}
	s.free = append(s.free, id.index)
}

func (s *Store) get(id NodeID) (*slot, bool) {
	if !id.Valid() || int(id.index) >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[id.index]
	if !sl.used || sl.gen != id.gen {
		return nil, false
	}
	return sl, true
}

// Live reports whether id still refers to a node in this store.
func (s *Store) Live(id NodeID) bool {
	_, ok := s.get(id)
	return ok
}

func (s *Store) path(idx uint32) string {
	var names []string
	for idx != noParent {
		sl := &s.slots[idx]
		if sl.parent == noParent {
			break
		}
		names = append(names, sl.name)
		idx = sl.parent
	}
	if len(names) == 0 {
		return s.rootPath
	}
	parts := make([]string, 0, len(names)+1)
	parts = append(parts, s.rootPath)
	for i := len(names) - 1; i >= 0; i-- {
		parts = append(parts, names[i])
	}
	return filepath.Join(parts...)
}

// Path returns the absolute path of id, computed from its ancestors.
func (s *Store) Path(id NodeID) (string, bool) {
	if _, ok := s.get(id); !ok {
		return "", false
	}
	return s.path(id.index), true
}

// Node returns a copy of the node.
func (s *Store) Node(id NodeID) (Node, bool) {
	sl, ok := s.get(id)
	if !ok {
		return Node{}, false
	}
	n := Node{
		ID:       id,
		Name:     sl.name,
		Path:     s.path(id.index),
		Kind:     sl.kind,
		Size:     sl.size,
		ModTime:  sl.modTime,
		Children: append([]NodeID(nil), sl.children...),
		Expanded: sl.expanded,
		Loading:  sl.loading,
	}
	if sl.parent != noParent {
		n.Parent = NodeID{index: sl.parent, gen: s.slots[sl.parent].gen}
	}
	return n, true
}

// Children returns the ordered child handles of id.
func (s *Store) Children(id NodeID) []NodeID {
	sl, ok := s.get(id)
	if !ok {
		return nil
	}
	return append([]NodeID(nil), sl.children...)
}

// FindByPath looks up the live node for an absolute path.
func (s *Store) FindByPath(path string) (NodeID, bool) {
	id, ok := s.byPath[filepath.Clean(path)]
	return id, ok
}

// SetChildren replaces the children of id with nodes for entries, in order.
// The previous children and their subtrees are destroyed.
func (s *Store) SetChildren(id NodeID, entries []fs.Entry) error {
	sl, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	if sl.kind != fs.KindDirectory {
		return ErrNotDirectory
	}
	s.clearChildren(id)

	children := make([]NodeID, 0, len(entries))
	for _, e := range entries {
		children = append(children, s.alloc(id.index, e))
	}
	// alloc may grow s.slots, re-resolve
	s.slots[id.index].children = children
	debug.Log(debug.TREE, "SetChildren: %s -> %d children", s.path(id.index), len(children))
	return nil
}

// ClearChildren destroys every child of id.
func (s *Store) ClearChildren(id NodeID) error {
	if _, ok := s.get(id); !ok {
		return ErrNotFound
	}
	s.clearChildren(id)
	return nil
}

func (s *Store) clearChildren(id NodeID) {
	children := s.slots[id.index].children
	s.slots[id.index].children = nil
	for _, c := range children {
		s.release(c)
	}
}

// AddChild creates a node for e under id at its sorted position. An existing
// child with the same name is replaced.
func (s *Store) AddChild(id NodeID, e fs.Entry) (NodeID, error) {
	sl, ok := s.get(id)
	if !ok {
		return NodeID{}, ErrNotFound
	}
	if sl.kind != fs.KindDirectory {
		return NodeID{}, ErrNotDirectory
	}
	for _, c := range sl.children {
		if s.slots[c.index].name == e.Name {
			s.removeChild(id, c)
			break
		}
	}

	child := s.alloc(id.index, e)
	sl = &s.slots[id.index]

	entries := make([]fs.Entry, len(sl.children)+1)
	for i, c := range sl.children {
		entries[i] = s.entry(c)
	}
	entries[len(entries)-1] = s.entry(child)
	fs.SortEntries(entries, s.opts)

	ordered := make([]NodeID, len(entries))
	for i, e := range entries {
		ordered[i] = s.byPath[e.Path]
	}
	sl.children = ordered
	return child, nil
}

// RemoveNode destroys id and its subtree. The root cannot be removed.
func (s *Store) RemoveNode(id NodeID) error {
	sl, ok := s.get(id)
	if !ok || sl.parent == noParent {
		return ErrNotFound
	}
	parent := NodeID{index: sl.parent, gen: s.slots[sl.parent].gen}
	s.removeChild(parent, id)
	return nil
}

func (s *Store) removeChild(parent, child NodeID) {
	ps := &s.slots[parent.index]
	for i, c := range ps.children {
		if c == child {
			ps.children = append(ps.children[:i:i], ps.children[i+1:]...)
			break
		}
	}
	s.release(child)
}

func (s *Store) entry(id NodeID) fs.Entry {
	sl := &s.slots[id.index]
	return fs.Entry{
		Name:    sl.name,
		Path:    s.path(id.index),
		Kind:    sl.kind,
		Size:    sl.size,
		ModTime: sl.modTime,
	}
}

// SetExpanded sets the expanded flag. Files cannot be expanded.
func (s *Store) SetExpanded(id NodeID, expanded bool) error {
	sl, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	if expanded && sl.kind != fs.KindDirectory {
		return ErrNotDirectory
	}
	sl.expanded = expanded
	return nil
}

// SetLoading sets the transient loading flag.
func (s *Store) SetLoading(id NodeID, loading bool) error {
	sl, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	sl.loading = loading
	return nil
}

// Walk visits live nodes depth-first in child order, starting at the root.
// Returning false from fn skips the node's subtree.
func (s *Store) Walk(fn func(id NodeID, depth int) bool) {
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		if !fn(id, depth) {
			return
		}
		for _, c := range s.slots[id.index].children {
			visit(c, depth+1)
		}
	}
	visit(s.root, 0)
}

// ExpandedPaths returns the paths of expanded nodes in depth-first order.
func (s *Store) ExpandedPaths() []string {
	var paths []string
	s.Walk(func(id NodeID, _ int) bool {
		if s.slots[id.index].expanded {
			paths = append(paths, s.path(id.index))
		}
		return true
	})
	return paths
}

// Row is one visible line of the tree as a display layer would draw it.
type Row struct {
	ID       NodeID
	Name     string
	Path     string
	Kind     fs.Kind
	Size     int64
	Depth    int
	Expanded bool
	Loading  bool
}

// Rows flattens the visible part of the tree: the root and the children of
// every expanded node.
func (s *Store) Rows() []Row {
	var rows []Row
	s.Walk(func(id NodeID, depth int) bool {
		sl := &s.slots[id.index]
		rows = append(rows, Row{
			ID:       id,
			Name:     sl.name,
			Path:     s.path(id.index),
			Kind:     sl.kind,
			Size:     sl.size,
			Depth:    depth,
			Expanded: sl.expanded,
			Loading:  sl.loading,
		})
		return sl.expanded
	})
	return rows
}

// Paths returns every live path, sorted. Mostly useful in tests.
func (s *Store) Paths() []string {
	paths := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Tree is one opened root: a Store plus an identity that tags its listings.
type Tree struct {
	ID uuid.UUID
	*Store
}

// New opens a fresh tree for rootPath.
func New(rootPath string, opts fs.Options) *Tree {
	return &Tree{
		ID:    uuid.New(),
		Store: NewStore(rootPath, opts),
	}
}

// Name returns the root folder's display name.
func (t *Tree) Name() string {
	return filepath.Base(t.RootPath())
}
