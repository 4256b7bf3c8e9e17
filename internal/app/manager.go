// Package app owns the open directory tree. A single goroutine, started by
// Manager.Run, applies every tree mutation and every listing result; the
// public methods post work to it and wait for the answer.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/justyntemme/filetree/internal/debug"
	"github.com/justyntemme/filetree/internal/events"
	"github.com/justyntemme/filetree/internal/fs"
	"github.com/justyntemme/filetree/internal/metrics"
	"github.com/justyntemme/filetree/internal/platform"
	"github.com/justyntemme/filetree/internal/tree"
)

var (
	ErrNoTree = errors.New("app: no folder open")
	ErrClosed = errors.New("app: manager is not running")
)

// Options configures a Manager. Nil capabilities get defaults: the system
// opener, adb, in-memory prefs, no events and errors written to the log.
type Options struct {
	Workers       int
	List          fs.Options
	CompactChains bool
	AutoOpenLast  bool

	Opener    FileOpener
	Installer PackageInstaller
	Prefs     Prefs
	Events    events.Sink
	Errors    ErrorReporter
}

// DefaultOptions matches the default configuration file.
func DefaultOptions() Options {
	return Options{
		Workers:       4,
		List:          fs.DefaultOptions(),
		CompactChains: true,
		AutoOpenLast:  true,
	}
}

// outbox holds listing requests until the owner loop can hand them to the
// worker pool.
type outbox struct {
	reqs []fs.Request
}

func (o *outbox) Submit(req fs.Request) { o.reqs = append(o.reqs, req) }

func (o *outbox) drop(token string) {
	keep := o.reqs[:0]
	for _, r := range o.reqs {
		if r.Token != token {
			keep = append(keep, r)
		}
	}
	o.reqs = keep
}

type Manager struct {
	opts    Options
	fs      *fs.System
	cmds    chan func()
	done    chan struct{}
	started atomic.Bool

	// Owned by the Run goroutine
	tree      *tree.Tree
	engine    *tree.Engine
	treeState string
	out       outbox
}

func New(opts Options) *Manager {
	if opts.Prefs == nil {
		opts.Prefs = &memPrefs{}
	}
	if opts.Events == nil {
		opts.Events = events.Discard
	}
	if opts.Errors == nil {
		opts.Errors = logReporter{}
	}
	if opts.Opener == nil {
		opts.Opener = platform.NewOpener("")
	}
	if opts.Installer == nil {
		opts.Installer = platform.NewADBInstaller("")
	}
	return &Manager{
		opts: opts,
		fs:   fs.NewSystem(opts.Workers, opts.List),
		cmds: make(chan func(), 16),
		done: make(chan struct{}),
	}
}

// Run is the tree-owning loop. It starts the listing workers and serves
// posted commands and listing results until ctx ends. Every other method
// needs Run to be running.
func (m *Manager) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("app: Run called twice")
	}
	go m.fs.Start()
	defer m.shutdown()

	debug.Log(debug.APP, "Run: owner loop started, workers=%d", m.fs.Workers)
	responses := m.fs.ResponseChan
	for {
		// Only offer a send when something is queued, so the loop never
		// blocks on a full request channel while workers wait on responses.
		var requests chan fs.Request
		var next fs.Request
		if len(m.out.reqs) > 0 {
			requests, next = m.fs.RequestChan, m.out.reqs[0]
		}

		select {
		case <-ctx.Done():
			debug.Log(debug.APP, "Run: context done: %v", ctx.Err())
			return nil
		case fn := <-m.cmds:
			fn()
		case requests <- next:
			m.out.reqs = m.out.reqs[1:]
		case resp, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			m.handleFSResponse(resp)
		}
	}
}

func (m *Manager) shutdown() {
	close(m.done)
	if m.engine != nil {
		m.engine.Discard()
		m.tree, m.engine = nil, nil
		metrics.TreeOpen.Set(0)
	}
	m.out.reqs = nil
	m.fs.Stop()
	go func() {
		for range m.fs.ResponseChan {
		}
	}()
}

// Done is closed once Run has returned.
func (m *Manager) Done() <-chan struct{} { return m.done }

func (m *Manager) post(fn func()) bool {
	select {
	case m.cmds <- fn:
		return true
	case <-m.done:
		return false
	}
}

// call runs fn on the owner goroutine and returns its result, or closed if
// the loop has stopped.
func call[T any](m *Manager, closed T, fn func() T) T {
	res := make(chan T, 1)
	if !m.post(func() { res <- fn() }) {
		return closed
	}
	select {
	case v := <-res:
		return v
	case <-m.done:
		return closed
	}
}

func resolved(err error) *tree.Task { return tree.Resolved(tree.NodeID{}, err) }

func (m *Manager) handleFSResponse(resp fs.Response) {
	if m.engine == nil || resp.Token != m.engine.Token() {
		debug.Log(debug.APP, "handleFSResponse: dropping %q from a closed tree", resp.Path)
		metrics.ExpansionsTotal.WithLabelValues("discarded").Inc()
		return
	}
	m.engine.Apply(resp)
}

// Open closes any open tree and opens path as the new root. The task
// completes once the root is listed and any held session state restored.
func (m *Manager) Open(path string) *tree.Task {
	abs, err := filepath.Abs(path)
	if err != nil {
		return resolved(err)
	}
	return call(m, resolved(ErrClosed), func() *tree.Task { return m.open(abs) })
}

func (m *Manager) open(path string) *tree.Task {
	m.closeTree(false)

	t := tree.New(path, m.opts.List)
	e := tree.NewEngine(t, &m.out)
	e.Compact = m.opts.CompactChains
	m.tree, m.engine = t, e
	metrics.RootsOpened.Inc()
	metrics.TreeOpen.Set(1)
	debug.Log(debug.APP, "open: %s tree=%s", path, t.ID)

	if err := m.opts.Prefs.SetRecentFolder(path); err != nil {
		m.opts.Errors.ReportError("Failed to save recent folder", err)
	}

	return tree.Chain(e.Expand(t.Root()), func(err error) *tree.Task {
		if err != nil || m.tree != t {
			return nil
		}
		m.opts.Events.RootChanged(events.RootEvent{Root: path, TreeID: t.ID.String(), At: time.Now()})

		// State captured under another root has nothing to restore here
		snap := tree.Decode(m.treeState)
		if !snap.Contains(t.RootPath()) {
			return nil
		}
		debug.Log(debug.APP, "open: restoring %d expanded paths", snap.Len())
		return tree.Restore(e, snap)
	})
}

// Close discards the open tree. With persist set the recent folder and the
// held session state are forgotten too.
func (m *Manager) Close(persist bool) error {
	return call(m, ErrClosed, func() error {
		m.closeTree(persist)
		return nil
	})
}

func (m *Manager) closeTree(persist bool) {
	if m.tree == nil {
		return
	}
	debug.Log(debug.APP, "closeTree: %s persist=%v", m.tree.RootPath(), persist)
	m.out.drop(m.engine.Token())
	m.engine.Discard()
	m.tree, m.engine = nil, nil
	metrics.TreeOpen.Set(0)

	if persist {
		if err := m.opts.Prefs.SetRecentFolder(""); err != nil {
			m.opts.Errors.ReportError("Failed to clear recent folder", err)
		}
		m.treeState = ""
	}
	m.opts.Events.RootChanged(events.RootEvent{At: time.Now()})
}

// Refresh reopens the current root and re-expands what was expanded.
func (m *Manager) Refresh() *tree.Task {
	return call(m, resolved(ErrClosed), func() *tree.Task {
		if m.tree == nil {
			return resolved(ErrNoTree)
		}
		m.treeState = tree.Capture(m.tree).Encode()
		return m.open(m.tree.RootPath())
	})
}

// UpdateRoot switches an open tree to path. An empty path closes it and
// forgets the recent folder. Without an open tree nothing happens.
func (m *Manager) UpdateRoot(path string) *tree.Task {
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return resolved(err)
		}
		path = abs
	}
	return call(m, resolved(ErrClosed), func() *tree.Task {
		if m.tree == nil {
			return resolved(ErrNoTree)
		}
		if path == "" {
			m.closeTree(true)
			return resolved(nil)
		}
		return m.open(path)
	})
}

// TryOpenRecent opens the recorded recent folder if it still is a
// directory. A failure to read the record is reported, not returned.
func (m *Manager) TryOpenRecent() *tree.Task {
	path, err := m.opts.Prefs.RecentFolder()
	if err != nil {
		m.opts.Errors.ReportError("Failed to open recent folder", err)
		return resolved(nil)
	}
	if path == "" {
		return resolved(nil)
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		debug.Log(debug.APP, "TryOpenRecent: %q is not a directory, nothing to open", path)
		return resolved(nil)
	}
	return m.Open(path)
}

// Startup opens the recent folder when AutoOpenLast is set.
func (m *Manager) Startup() *tree.Task {
	if !m.opts.AutoOpenLast {
		return resolved(nil)
	}
	return m.TryOpenRecent()
}

type activation struct {
	task *tree.Task
	id   tree.NodeID
	file string
}

// Activate is a click on a node: directories toggle, packages are
// installed, text files are opened. Other files are ignored.
func (m *Manager) Activate(path string) *tree.Task {
	path = filepath.Clean(path)
	a := call(m, activation{task: resolved(ErrClosed)}, func() activation {
		if m.tree == nil {
			return activation{task: resolved(ErrNoTree)}
		}
		id, ok := m.tree.FindByPath(path)
		if !ok {
			return activation{task: resolved(tree.ErrNotFound)}
		}
		n, _ := m.tree.Node(id)
		if n.IsDir() {
			return activation{task: m.engine.Toggle(id)}
		}
		return activation{id: id, file: n.Path}
	})
	if a.task != nil {
		return a.task
	}
	// Outside the owner: installs can take a while
	return tree.Resolved(a.id, m.activateFile(a.file))
}

func (m *Manager) activateFile(path string) error {
	name := filepath.Base(path)
	switch {
	case platform.IsInstallablePackage(name):
		return m.opts.Installer.InstallPackage(path)
	case platform.IsValidTextFile(name):
		return m.opts.Opener.OpenFile(path)
	}
	debug.Log(debug.APP, "activateFile: %q is not a text file", path)
	return nil
}

// Expand lists the directory at path.
func (m *Manager) Expand(path string) *tree.Task {
	path = filepath.Clean(path)
	return call(m, resolved(ErrClosed), func() *tree.Task {
		if m.tree == nil {
			return resolved(ErrNoTree)
		}
		id, ok := m.tree.FindByPath(path)
		if !ok {
			return resolved(tree.ErrNotFound)
		}
		return m.engine.Expand(id)
	})
}

// Collapse drops the children of the directory at path.
func (m *Manager) Collapse(path string) error {
	path = filepath.Clean(path)
	return call(m, ErrClosed, func() error {
		if m.tree == nil {
			return ErrNoTree
		}
		id, ok := m.tree.FindByPath(path)
		if !ok {
			return tree.ErrNotFound
		}
		m.engine.Collapse(id)
		return nil
	})
}

// AddEntry attaches a node for name, just created on disk under parentPath,
// without listing the parent again.
func (m *Manager) AddEntry(parentPath, name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("add entry: invalid name %q", name)
	}
	parentPath = filepath.Clean(parentPath)
	full := filepath.Join(parentPath, name)
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	entry := fs.Entry{
		Name:    name,
		Path:    full,
		Kind:    fs.KindFile,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if info.IsDir() {
		entry.Kind = fs.KindDirectory
	}

	return call(m, ErrClosed, func() error {
		if m.tree == nil {
			return ErrNoTree
		}
		id, ok := m.tree.FindByPath(parentPath)
		if !ok {
			return tree.ErrNotFound
		}
		_, err := m.tree.AddChild(id, entry)
		return err
	})
}

// SessionState returns the encoded expansion state: captured from the open
// tree, or the held state when none is open.
func (m *Manager) SessionState() string {
	return call(m, "", func() string {
		if m.tree != nil {
			return tree.Capture(m.tree).Encode()
		}
		return m.treeState
	})
}

// SetSessionState holds state for the next Open of its root.
func (m *Manager) SetSessionState(state string) error {
	return call(m, ErrClosed, func() error {
		m.treeState = state
		return nil
	})
}

// RootPath returns the open root, or "" when none is open.
func (m *Manager) RootPath() string {
	return call(m, "", func() string {
		if m.tree == nil {
			return ""
		}
		return m.tree.RootPath()
	})
}

// View is an immutable copy of the open tree for a display layer.
type View struct {
	Root     string
	Name     string
	TreeID   string
	Rows     []tree.Row
	Expanded []string
	Pending  int
}

// HasExpanded reports whether path is expanded in the view.
func (v View) HasExpanded(path string) bool {
	for _, p := range v.Expanded {
		if p == path {
			return true
		}
	}
	return false
}

// Row returns the visible row for path.
func (v View) Row(path string) (tree.Row, bool) {
	for _, r := range v.Rows {
		if r.Path == path {
			return r, true
		}
	}
	return tree.Row{}, false
}

type viewResult struct {
	view View
	err  error
}

func (m *Manager) View() (View, error) {
	r := call(m, viewResult{err: ErrClosed}, func() viewResult {
		if m.tree == nil {
			return viewResult{err: ErrNoTree}
		}
		return viewResult{view: View{
			Root:     m.tree.RootPath(),
			Name:     m.tree.Name(),
			TreeID:   m.tree.ID.String(),
			Rows:     m.tree.Rows(),
			Expanded: m.tree.ExpandedPaths(),
			Pending:  m.engine.Pending(),
		}}
	})
	return r.view, r.err
}

// String renders the view as an indented listing.
func (v View) String() string {
	var b strings.Builder
	for _, r := range v.Rows {
		marker := "  "
		switch {
		case r.Loading:
			marker = "… "
		case r.Kind == fs.KindDirectory && r.Expanded:
			marker = "▾ "
		case r.Kind == fs.KindDirectory:
			marker = "▸ "
		}
		b.WriteString(strings.Repeat("  ", r.Depth))
		b.WriteString(marker)
		b.WriteString(r.Name)
		b.WriteByte('\n')
	}
	return b.String()
}
