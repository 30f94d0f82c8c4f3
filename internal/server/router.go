// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/tracklab/trove/internal/bridge"
	"github.com/tracklab/trove/internal/index"
	"github.com/tracklab/trove/internal/object"
	"github.com/tracklab/trove/internal/server/handlers"
	"github.com/tracklab/trove/internal/server/ratelimit"
)

// NewRouter creates and configures the HTTP router.
// A nil limiter disables rate limiting.
func NewRouter(store *object.Store, cache *index.Cache, hub *bridge.Hub, limiter *ratelimit.Limiter) http.Handler {
	mux := &http.ServeMux{}
	rh := handlers.NewRecordHandler(store)
	ch := handlers.NewContentHandler(store)
	ah := handlers.NewArrayHandler(store)
	vh := handlers.NewViewHandler(cache)
	eh := handlers.NewEventHandler(hub)
	hh := handlers.NewHealthHandler()

	// Health check
	mux.Handle("GET /health", Wrap(hh.Health))

	// Notification channel
	mux.HandleFunc("GET /events", eh.ServeEvents)

	// Three-segment GET paths share one pattern: the view routes carry a
	// literal second segment, the record attributes route a record ID there,
	// and ServeMux cannot rank "/{otype}/index/{position}" against
	// "/{otype}/{oid}/attributes" (neither is more specific, registering
	// both panics). Dispatch on the second segment instead.
	resolveIndex := Wrap(vh.ResolveIndex)
	resolvePosition := Wrap(vh.ResolvePosition)
	getAttributes := Wrap(rh.GetAttributes)
	mux.HandleFunc("GET /{otype}/{second}/{third}", func(w http.ResponseWriter, r *http.Request) {
		second, third := r.PathValue("second"), r.PathValue("third")
		switch {
		case second == "index":
			r.SetPathValue("position", third)
			resolveIndex.ServeHTTP(w, r)
		case second == "id":
			r.SetPathValue("oid", third)
			resolvePosition.ServeHTTP(w, r)
		case third == "attributes":
			r.SetPathValue("oid", second)
			getAttributes.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	mux.Handle("GET /{otype}/count", Wrap(vh.Count))

	// Per-type enumerations
	mux.Handle("GET /{otype}/tags", Wrap(rh.ListTags))
	mux.Handle("GET /{otype}/attributes/keys", Wrap(rh.ListAttributeKeys))
	mux.Handle("GET /{otype}/content/keys", Wrap(rh.ListContentKeys))

	// Records
	mux.Handle("POST /{otype}", Wrap(rh.CreateRecord))
	mux.Handle("GET /{otype}/{oid}", Wrap(rh.GetRecord))
	mux.Handle("DELETE /{otype}/{oid}", Wrap(rh.DeleteRecord))
	mux.Handle("PUT /{otype}/{oid}/attributes", Wrap(rh.UpdateAttributes))
	mux.Handle("PUT /{otype}/{oid}/tags", Wrap(rh.UpdateTags))

	// Content payloads
	mux.HandleFunc("GET /{otype}/{oid}/content/{key}/data", ch.ServeData)
	mux.Handle("DELETE /{otype}/{oid}/content/{key}", Wrap(ch.DeleteContent))

	// Typed content views
	mux.HandleFunc("GET /{otype}/{oid}/content/{key}/array/image", ah.ServeImage)
	mux.Handle("GET /{otype}/{oid}/content/{key}/array/metadata", Wrap(ah.ArrayMetadata))
	mux.Handle("GET /{otype}/{oid}/content/{key}/arrays/metadata", Wrap(ah.CollectionMetadata))
	mux.Handle("GET /{otype}/{oid}/content/{key}/arrays/{name}/data", Wrap(ah.NamedArrayData))
	mux.Handle("GET /{otype}/{oid}/content/{key}/image/metadata", Wrap(ah.ImageMetadata))

	var h http.Handler = mux
	h = ratelimit.Middleware(limiter, h)
	h = RequestMetadata(h)
	h = RequestLogger(h)
	return h
}
