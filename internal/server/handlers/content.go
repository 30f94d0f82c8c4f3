// Handles raw content payload serving and content deletion.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/maruel/ksid"
	"github.com/tracklab/trove/internal/object"
	"github.com/tracklab/trove/internal/server/dto"
	"github.com/tracklab/trove/internal/server/reqctx"
)

// ContentHandler handles content payload endpoints.
type ContentHandler struct {
	store *object.Store
}

// NewContentHandler creates a new content handler.
func NewContentHandler(store *object.Store) *ContentHandler {
	return &ContentHandler{store: store}
}

// resolveContent resolves path parameters to a content reference.
func (h *ContentHandler) resolveContent(otype, oid, key string) (object.OType, ksid.ID, object.ContentRef, error) {
	ot, err := parseOType(otype)
	if err != nil {
		return "", 0, object.ContentRef{}, err
	}
	id, err := parseOID(oid)
	if err != nil {
		return "", 0, object.ContentRef{}, err
	}
	if key == "" {
		return "", 0, object.ContentRef{}, dto.MissingField("key")
	}
	ref, err := h.store.GetContent(ot, id, key)
	if err != nil {
		return "", 0, object.ContentRef{}, err
	}
	return ot, id, ref, nil
}

// ServeData serves a content payload raw, honoring a single byte range.
// This is a raw handler: the response body is the payload, not JSON.
func (h *ContentHandler) ServeData(w http.ResponseWriter, r *http.Request) {
	_, _, ref, err := h.resolveContent(r.PathValue("otype"), r.PathValue("oid"), r.PathValue("key"))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	size, err := ref.Data.Size()
	if err != nil {
		writeErrorResponse(w, dto.Storage("resolve payload size").Wrap(err))
		return
	}
	src, err := h.store.Payloads().Open(ref.Data)
	if err != nil {
		writeErrorResponse(w, dto.Storage("open payload").Wrap(err))
		return
	}
	if err := serveBlob(w, r, src, ref.Type.String(), size); err != nil {
		// Header validation errors happen before the first write; copy
		// failures afterwards can only be logged.
		if ews := TranslateError(err); ews != nil && ews.StatusCode() < 500 {
			writeErrorResponse(w, err)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to stream payload", "err", err)
	}
}

// DeleteContent removes a content key and releases its payload.
func (h *ContentHandler) DeleteContent(ctx context.Context, req *dto.ContentRequest) (*dto.EmptyResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	id, err := parseOID(req.OID)
	if err != nil {
		return nil, err
	}
	if err := h.store.SetContent(ot, id, req.Key, nil, reqctx.Actor(ctx)); err != nil {
		return nil, err
	}
	return &dto.EmptyResponse{}, nil
}
