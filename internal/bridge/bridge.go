// Package bridge turns the record store's per-type mutation feeds into
// ordered notifications on a shared hub.
//
// One supervised worker runs per watched record type. Each worker blocks on
// its own feed subscription and owns no state shared with other workers;
// they communicate only by publishing immutable events to the hub. A feed
// failure is retried with exponential backoff and never affects another
// type's worker.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tracklab/trove/internal/object"
	"github.com/tracklab/trove/internal/recdb"
)

const (
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
	feedBuffer  = 256
)

// Bridge republishes record store mutations as hub events.
type Bridge struct {
	store *object.Store
	hub   *Hub
	types []object.OType
}

// New creates a bridge watching the given record types. Empty types means
// all types.
func New(store *object.Store, hub *Hub, types []object.OType) *Bridge {
	if len(types) == 0 {
		types = object.OTypes()
	}
	return &Bridge{store: store, hub: hub, types: types}
}

// Run starts one worker per watched type and blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, ot := range b.types {
		wg.Add(1)
		go func(ot object.OType) {
			defer wg.Done()
			b.watchType(ctx, ot)
		}(ot)
	}
	wg.Wait()
}

// watchType consumes one type's feed until ctx is cancelled, resubscribing
// with backoff whenever the feed shuts down underneath it.
func (b *Bridge) watchType(ctx context.Context, ot object.OType) {
	backoff := baseBackoff
	for {
		ch, cancel := b.store.Feed(ot).Subscribe(feedBuffer)
	consume:
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case m, ok := <-ch:
				if !ok {
					break consume
				}
				b.hub.Publish(eventFor(ot, m))
				backoff = baseBackoff
			}
		}
		cancel()

		slog.WarnContext(ctx, "Change feed closed, resubscribing", "otype", ot, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// eventFor maps a feed mutation to its notification event.
func eventFor(ot object.OType, m recdb.Mutation) Event {
	name := EventChanged
	switch m.Op {
	case recdb.OpInsert:
		name = EventCreated
	case recdb.OpDelete:
		name = EventDeleted
	}
	return Event{Name: name, OType: ot, OID: m.ID}
}
