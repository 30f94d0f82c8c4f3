// Per-table mutation feed: publishes insert/update/delete notifications to subscribers.

package recdb

import (
	"sync"

	"github.com/maruel/ksid"
)

// Op is the kind of mutation observed on a table.
type Op uint8

const (
	// OpInsert is a new row.
	OpInsert Op = iota + 1
	// OpUpdate is a change to an existing row.
	OpUpdate
	// OpDelete is a row removal.
	OpDelete
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Mutation is a single observed table mutation.
type Mutation struct {
	Op Op
	ID ksid.ID
}

// Feed fans out table mutations to subscribers.
//
// Publishing never blocks: a subscriber whose channel is full misses the
// mutation. Subscribers that need a complete view must reconcile against the
// table after a miss; the Change Bridge sizes its buffer accordingly.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan Mutation]struct{}
	closed bool
}

func newFeed() *Feed {
	return &Feed{subs: make(map[chan Mutation]struct{})}
}

// Subscribe registers a new subscriber with the given channel buffer size.
//
// The returned cancel function unregisters the subscriber and closes its
// channel. The channel is also closed when the table shuts down, which
// signals subscribers to resubscribe or stop.
func (f *Feed) Subscribe(buffer int) (<-chan Mutation, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Mutation, buffer)
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
			f.mu.Unlock()
		})
	}
	return ch, cancel
}

// publish delivers a mutation to all subscribers without blocking.
func (f *Feed) publish(m Mutation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- m:
		default:
			// Subscriber is not keeping up; drop rather than stall mutators.
		}
	}
}

// close shuts the feed down, closing all subscriber channels.
func (f *Feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		close(ch)
	}
	f.subs = make(map[chan Mutation]struct{})
}
