// Handles array, array collection, and image views over content payloads.

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tracklab/trove/internal/ndarray"
	"github.com/tracklab/trove/internal/object"
	"github.com/tracklab/trove/internal/server/dto"
)

// ArrayHandler handles typed views of content payloads.
type ArrayHandler struct {
	store *object.Store
}

// NewArrayHandler creates a new array handler.
func NewArrayHandler(store *object.Store) *ArrayHandler {
	return &ArrayHandler{store: store}
}

// loadArray resolves and decodes a single-array payload.
func (h *ArrayHandler) loadArray(otype, oid, key string) (*ndarray.Array, error) {
	ot, err := parseOType(otype)
	if err != nil {
		return nil, err
	}
	id, err := parseOID(oid)
	if err != nil {
		return nil, err
	}
	ref, err := h.store.GetContent(ot, id, key)
	if err != nil {
		return nil, err
	}
	if !ref.Type.ArrayViewable() {
		return nil, dto.TypeMismatch("array", ref.Type.String())
	}
	blob, err := h.store.Payloads().ReadAll(ref.Data)
	if err != nil {
		return nil, dto.Storage("read payload").Wrap(err)
	}
	return ndarray.Decode(blob)
}

// openCollection resolves and opens an array collection payload. The caller
// must close it.
func (h *ArrayHandler) openCollection(otype, oid, key string) (*ndarray.Collection, error) {
	ot, err := parseOType(otype)
	if err != nil {
		return nil, err
	}
	id, err := parseOID(oid)
	if err != nil {
		return nil, err
	}
	ref, err := h.store.GetContent(ot, id, key)
	if err != nil {
		return nil, err
	}
	if !ref.Type.CollectionViewable() {
		return nil, dto.TypeMismatch("array collection", ref.Type.String())
	}
	src, err := h.store.Payloads().Open(ref.Data)
	if err != nil {
		return nil, dto.Storage("open payload").Wrap(err)
	}
	return ndarray.OpenCollection(src)
}

// ArrayMetadata summarizes a single-array payload without its data.
func (h *ArrayHandler) ArrayMetadata(ctx context.Context, req *dto.ContentRequest) (*dto.ArrayMetadataResponse, error) {
	a, err := h.loadArray(req.OType, req.OID, req.Key)
	if err != nil {
		return nil, err
	}
	return &dto.ArrayMetadataResponse{Metadata: arrayMetadataToDTO(a.Metadata())}, nil
}

// CollectionMetadata lists the arrays of a collection payload, in stored order.
func (h *ArrayHandler) CollectionMetadata(ctx context.Context, req *dto.ContentRequest) (*dto.CollectionMetadataResponse, error) {
	col, err := h.openCollection(req.OType, req.OID, req.Key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = col.Close() }()

	resp := &dto.CollectionMetadataResponse{Metadata: make([]dto.NamedArrayMetadata, 0, col.Len())}
	for _, name := range col.Names() {
		a, _ := col.Get(name)
		resp.Metadata = append(resp.Metadata, dto.NamedArrayMetadata{
			Name:          name,
			ArrayMetadata: arrayMetadataToDTO(a.Metadata()),
		})
	}
	return resp, nil
}

// NamedArrayData returns one named array of a collection as nested JSON lists.
func (h *ArrayHandler) NamedArrayData(ctx context.Context, req *dto.NamedArrayRequest) (*dto.ArrayDataResponse, error) {
	col, err := h.openCollection(req.OType, req.OID, req.Key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = col.Close() }()

	a, ok := col.Get(req.Name)
	if !ok {
		return nil, dto.NotFound("array")
	}
	return &dto.ArrayDataResponse{Data: a.Nested()}, nil
}

// ImageMetadata describes an image payload without decoding its pixels.
func (h *ArrayHandler) ImageMetadata(ctx context.Context, req *dto.ContentRequest) (*dto.ImageMetadataResponse, error) {
	ot, err := parseOType(req.OType)
	if err != nil {
		return nil, err
	}
	id, err := parseOID(req.OID)
	if err != nil {
		return nil, err
	}
	ref, err := h.store.GetContent(ot, id, req.Key)
	if err != nil {
		return nil, err
	}
	if !ref.Type.ImageViewable() {
		return nil, dto.TypeMismatch("image", ref.Type.String())
	}
	src, err := h.store.Payloads().Open(ref.Data)
	if err != nil {
		return nil, dto.Storage("open payload").Wrap(err)
	}
	defer func() { _ = src.Close() }()
	info, err := ndarray.DecodeImageInfo(src)
	if err != nil {
		return nil, dto.Storage("decode image header").Wrap(err)
	}
	return &dto.ImageMetadataResponse{
		Width:  info.Width,
		Height: info.Height,
		Format: info.Format,
	}, nil
}

// ServeImage renders a single-array payload as a color-mapped PNG.
// This is a raw handler: the response body is the image, not JSON.
func (h *ArrayHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	spec := r.URL.Query().Get("colormap")
	if spec == "" {
		spec = ndarray.DefaultColormap
	}
	cm, err := ndarray.LookupColormap(spec)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	a, err := h.loadArray(r.PathValue("otype"), r.PathValue("oid"), r.PathValue("key"))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	png, err := ndarray.RenderPNG(a, cm)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(png)
}
