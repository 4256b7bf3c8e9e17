// Package events notifies interested parts of the host when the open root
// folder changes.
package events

import (
	"sync"
	"time"

	"github.com/justyntemme/filetree/internal/debug"
)

// RootEvent reports the folder that is now open. Root is empty when no
// folder is open.
type RootEvent struct {
	Root   string    `json:"root"`
	TreeID string    `json:"tree_id,omitempty"`
	At     time.Time `json:"at"`
}

// Sink receives root changes. Implementations must not block the caller.
type Sink interface {
	RootChanged(ev RootEvent)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ev RootEvent)

func (f SinkFunc) RootChanged(ev RootEvent) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(RootEvent) {})

// Multi fans an event out to several sinks in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(ev RootEvent) {
		for _, s := range live {
			s.RootChanged(ev)
		}
	})
}

// Bus delivers events to in-process subscribers. A subscriber whose buffer
// is full misses the event rather than stalling the publisher.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan RootEvent
	nextID int
	last   RootEvent
	seen   bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan RootEvent)}
}

// Subscribe returns a channel of future events and a function that
// unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan RootEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan RootEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Last returns the most recent event, if any was published.
func (b *Bus) Last() (RootEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.seen
}

func (b *Bus) RootChanged(ev RootEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last, b.seen = ev, true
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			debug.Log(debug.EVENT, "Bus: subscriber %d full, dropping root=%q", id, ev.Root)
		}
	}
}
