// Serves the notification channel as server-sent events.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracklab/trove/internal/bridge"
)

// eventBuffer is the per-client queue. A client that falls this far behind
// misses events rather than stalling the hub.
const eventBuffer = 64

// keepAliveInterval paces comment lines that keep idle connections open
// through proxies.
const keepAliveInterval = 30 * time.Second

// EventHandler streams change notifications to clients.
type EventHandler struct {
	hub *bridge.Hub
}

// NewEventHandler creates a new event handler.
func NewEventHandler(hub *bridge.Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

// ServeEvents streams hub events as SSE until the client disconnects.
// This is a raw handler: the response is a text/event-stream.
func (h *EventHandler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	events, cancel := h.hub.Subscribe(eventBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		// The 200 header is already out; an error body could not change the
		// status anymore.
		slog.ErrorContext(r.Context(), "Connection does not support streaming", "err", err)
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return
			}
			_ = rc.Flush()
		}
	}
}
