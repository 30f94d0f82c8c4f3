package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tracklab/trove/internal/bridge"
)

// plainWriter supports no flushing, like a writer behind a middleware that
// does not forward the Flusher interface.
type plainWriter struct {
	header http.Header
	status int
	body   []byte
}

func (w *plainWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *plainWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return len(b), nil
}

func (w *plainWriter) WriteHeader(status int) {
	w.status = status
}

func TestServeEventsUnflushableWriter(t *testing.T) {
	hub := bridge.NewHub()
	defer hub.Close()
	h := NewEventHandler(hub)
	w := &plainWriter{}
	r := httptest.NewRequest("GET", "/events", nil)

	done := make(chan struct{})
	go func() {
		h.ServeEvents(w, r)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return")
	}

	if w.status != http.StatusOK {
		t.Errorf("status = %d, want %d", w.status, http.StatusOK)
	}
	if len(w.body) != 0 {
		t.Errorf("body after failed flush = %q, want empty", w.body)
	}
}
