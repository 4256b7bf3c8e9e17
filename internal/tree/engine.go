package tree

import (
	"github.com/justyntemme/filetree/internal/debug"
	"github.com/justyntemme/filetree/internal/fs"
	"github.com/justyntemme/filetree/internal/metrics"
)

// Dispatcher hands a listing request to whatever runs listings off the
// owning goroutine. Submit must not block on the listing itself.
type Dispatcher interface {
	Submit(req fs.Request)
}

// Engine expands and collapses nodes of one tree. Listings run elsewhere;
// their responses come back through Apply. Every method must be called
// from the goroutine that owns the tree.
type Engine struct {
	Tree *Tree

	// Compact enables single-chain compaction for Expand.
	Compact bool

	dispatch  Dispatcher
	inflight  map[NodeID]*Task
	seq       uint64
	discarded bool
}

// NewEngine binds an engine to t. Compaction is on by default.
func NewEngine(t *Tree, d Dispatcher) *Engine {
	return &Engine{
		Tree:     t,
		Compact:  true,
		dispatch: d,
		inflight: make(map[NodeID]*Task),
	}
}

// Token identifies this engine's listings in responses.
func (e *Engine) Token() string { return e.Tree.ID.String() }

// Expand lists id and fills its children, compacting single-child chains
// when Compact is set. An expansion already in flight for id is returned
// instead of starting a second listing.
func (e *Engine) Expand(id NodeID) *Task {
	return e.expand(id, e.Compact)
}

func (e *Engine) expand(id NodeID, compact bool) *Task {
	if e.discarded {
		return Resolved(id, ErrDiscarded)
	}
	n, ok := e.Tree.Node(id)
	if !ok {
		return Resolved(id, ErrNotFound)
	}
	if !n.IsDir() {
		return Resolved(id, ErrNotDirectory)
	}
	if t, ok := e.inflight[id]; ok {
		debug.Log(debug.TREE, "Expand: %s already loading", n.Path)
		metrics.ExpansionsTotal.WithLabelValues("coalesced").Inc()
		return t
	}

	e.Tree.ClearChildren(id)
	e.Tree.SetExpanded(id, false)
	e.Tree.SetLoading(id, true)

	e.seq++
	t := newTask(id)
	t.seq = e.seq
	e.inflight[id] = t

	debug.Log(debug.TREE, "Expand: %s compact=%v seq=%d", n.Path, compact, t.seq)
	e.dispatch.Submit(fs.Request{
		Op:      fs.FetchDir,
		Path:    n.Path,
		Compact: compact,
		Gen:     t.seq,
		Index:   id.index,
		Token:   e.Token(),
	})
	return t
}

// Collapse drops the children of id and clears its expanded flag. A
// listing in flight for id is abandoned.
func (e *Engine) Collapse(id NodeID) {
	if !e.Tree.Live(id) {
		return
	}
	if t, ok := e.inflight[id]; ok {
		delete(e.inflight, id)
		e.Tree.SetLoading(id, false)
		t.resolve(ErrDiscarded)
	}
	e.Tree.ClearChildren(id)
	e.Tree.SetExpanded(id, false)
	metrics.CollapsesTotal.Inc()
	debug.Log(debug.TREE, "Collapse: index=%d", id.index)
}

// Toggle collapses an expanded directory and expands a collapsed one.
func (e *Engine) Toggle(id NodeID) *Task {
	n, ok := e.Tree.Node(id)
	if !ok {
		return Resolved(id, ErrNotFound)
	}
	if !n.IsDir() {
		return Resolved(id, ErrNotDirectory)
	}
	if n.Expanded {
		e.Collapse(id)
		return Resolved(id, nil)
	}
	return e.Expand(id)
}

// Loading reports whether a listing is in flight for id.
func (e *Engine) Loading(id NodeID) bool {
	_, ok := e.inflight[id]
	return ok
}

// Pending returns the number of listings in flight.
func (e *Engine) Pending() int { return len(e.inflight) }

// Apply installs a listing response. Responses for other trees, abandoned
// expansions or destroyed nodes are dropped. It reports whether the
// response was applied.
func (e *Engine) Apply(resp fs.Response) bool {
	if resp.Token != e.Token() || e.discarded {
		return false
	}
	id := NodeID{index: resp.Index}
	var t *Task
	for nid, it := range e.inflight {
		if nid.index == resp.Index && it.seq == resp.Gen {
			id, t = nid, it
			break
		}
	}
	if t == nil {
		debug.Log(debug.TREE, "Apply: stale response for %q seq=%d", resp.Path, resp.Gen)
		metrics.ExpansionsTotal.WithLabelValues("discarded").Inc()
		return false
	}
	delete(e.inflight, id)

	if !e.Tree.Live(id) {
		metrics.ExpansionsTotal.WithLabelValues("discarded").Inc()
		t.resolve(ErrDiscarded)
		return false
	}

	e.Tree.SetChildren(id, resp.Entries())
	e.Tree.SetExpanded(id, true)

	// Descend the chain the worker listed past id
	cur := id
	for _, l := range resp.Listings[min(1, len(resp.Listings)):] {
		children := e.Tree.Children(cur)
		if len(children) != 1 {
			break
		}
		child, _ := e.Tree.Node(children[0])
		if !child.IsDir() || child.Path != l.Path {
			break
		}
		e.Tree.SetChildren(child.ID, l.Entries)
		e.Tree.SetExpanded(child.ID, true)
		cur = child.ID
	}

	e.Tree.SetLoading(id, false)
	metrics.ExpansionsTotal.WithLabelValues("applied").Inc()
	debug.Log(debug.TREE, "Apply: %q levels=%d", resp.Path, len(resp.Listings))
	t.resolve(nil)
	return true
}

// Discard abandons every expansion in flight. Used when the tree is closed.
func (e *Engine) Discard() {
	e.discarded = true
	inflight := e.inflight
	e.inflight = make(map[NodeID]*Task)
	for _, t := range inflight {
		t.resolve(ErrDiscarded)
	}
}
