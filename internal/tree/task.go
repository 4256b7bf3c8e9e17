package tree

import "context"

// Task is the completion signal of one asynchronous tree operation. It is
// resolved exactly once, on the goroutine that owns the tree; continuations
// registered with Then run there before Done is closed.
type Task struct {
	node     NodeID
	seq      uint64
	done     chan struct{}
	err      error
	resolved bool
	then     []func(error)
}

func newTask(node NodeID) *Task {
	return &Task{node: node, done: make(chan struct{})}
}

// Resolved returns an already completed task.
func Resolved(node NodeID, err error) *Task {
	t := newTask(node)
	t.resolve(err)
	return t
}

// Node returns the node the task was started for.
func (t *Task) Node() NodeID { return t.node }

// Done is closed once the task has completed and its continuations have run.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the outcome. Only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task completes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Then registers fn to run on the owning goroutine when the task completes.
// If it already has, fn runs immediately. Must be called from the owner.
func (t *Task) Then(fn func(err error)) {
	if t.resolved {
		fn(t.err)
		return
	}
	t.then = append(t.then, fn)
}

func (t *Task) resolve(err error) {
	if t.resolved {
		return
	}
	t.resolved = true
	t.err = err
	then := t.then
	t.then = nil
	for _, fn := range then {
		fn(err)
	}
	close(t.done)
}

// Chain returns a task that completes after first and then after the task
// next returns for first's outcome. A nil task from next completes the
// chain with first's error.
func Chain(first *Task, next func(err error) *Task) *Task {
	t := newTask(first.node)
	first.Then(func(err error) {
		n := next(err)
		if n == nil {
			t.resolve(err)
			return
		}
		n.Then(t.resolve)
	})
	return t
}

// group resolves its task once every added member has finished.
type group struct {
	task    *Task
	pending int
	err     error
}

func newGroup(node NodeID) *group {
	return &group{task: newTask(node)}
}

func (g *group) add() { g.pending++ }

func (g *group) finish(err error) {
	if err != nil && g.err == nil {
		g.err = err
	}
	g.pending--
	g.settle()
}

func (g *group) settle() {
	if g.pending == 0 {
		g.task.resolve(g.err)
	}
}
