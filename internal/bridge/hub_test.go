package bridge

import (
	"testing"
	"time"

	"github.com/maruel/ksid"
	"github.com/tracklab/trove/internal/object"
)

func TestHub(t *testing.T) {
	t.Run("delivery preserves publish order", func(t *testing.T) {
		h := NewHub()
		defer h.Close()
		ch, cancel := h.Subscribe(8)
		defer cancel()

		ids := []ksid.ID{ksid.NewID(), ksid.NewID(), ksid.NewID()}
		for _, id := range ids {
			h.Publish(Event{Name: EventCreated, OType: object.Trials, OID: id})
		}
		for i, want := range ids {
			select {
			case ev := <-ch:
				if ev.OID != want {
					t.Errorf("event %d OID = %v, want %v", i, ev.OID, want)
				}
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for event %d", i)
			}
		}
	})

	t.Run("full subscriber drops events without blocking", func(t *testing.T) {
		h := NewHub()
		defer h.Close()
		ch, cancel := h.Subscribe(1)
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for range 10 {
				h.Publish(Event{Name: EventChanged, OType: object.Models, OID: ksid.NewID()})
			}
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Publish blocked on a full subscriber")
		}
		// Only the buffered event survives.
		if got := len(ch); got != 1 {
			t.Errorf("buffered events = %d, want 1", got)
		}
	})

	t.Run("cancel closes the channel", func(t *testing.T) {
		h := NewHub()
		defer h.Close()
		ch, cancel := h.Subscribe(1)
		cancel()
		if _, ok := <-ch; ok {
			t.Error("channel delivered an event after cancel")
		}
		cancel() // idempotent
	})

	t.Run("close drops all subscribers", func(t *testing.T) {
		h := NewHub()
		ch, cancel := h.Subscribe(1)
		defer cancel()
		h.Close()
		if _, ok := <-ch; ok {
			t.Error("channel open after hub close")
		}
		// Publishing after close is a no-op.
		h.Publish(Event{Name: EventDeleted, OType: object.Trials, OID: ksid.NewID()})
		// A late subscriber gets a closed channel.
		late, lateCancel := h.Subscribe(1)
		defer lateCancel()
		if _, ok := <-late; ok {
			t.Error("subscription on a closed hub delivered an event")
		}
	})
}
